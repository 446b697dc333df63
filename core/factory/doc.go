// Package factory is a small generic registry used to build pluggable modules
// (data sources, metrics sinks) from configuration. A module is selected by a
// type string and receives its raw settings map, which factories decode into
// typed structs with Decode.
//
//	reg := factory.NewRegistry[source.Source]()
//	_ = reg.Register("csv", func(conf map[string]any) (source.Source, error) {
//	    var c struct{ Dir string `json:"dir"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return csvsource.New(c.Dir), nil
//	})
//	src, err := reg.Create(factory.ModuleConfig{Type: "csv", Conf: map[string]any{"dir": "data"}})
package factory
