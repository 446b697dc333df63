package metrics

import "github.com/kilianp07/energyledger/core/factory"

var sinkRegistry = factory.NewRegistry[Recorder]()

// RegisterSink adds a recorder factory identified by name.
func RegisterSink(name string, f factory.Factory[Recorder]) error {
	return sinkRegistry.Register(name, f)
}

// NewRecorder creates a Recorder from the configured sinks.
func NewRecorder(cfgs []factory.ModuleConfig) (Recorder, error) {
	if len(cfgs) == 0 {
		return NopRecorder{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	m := NewMultiRecorder()
	for _, c := range cfgs {
		r, err := sinkRegistry.Create(c)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m.Recorders = append(m.Recorders, r)
	}
	return m, nil
}

// AsLoginRecorder returns r as a LoginRecorder, or a no-op one.
func AsLoginRecorder(r Recorder) LoginRecorder {
	if lr, ok := r.(LoginRecorder); ok {
		return lr
	}
	return NopRecorder{}
}
