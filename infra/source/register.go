// Package source holds the store-backed implementations of core/source and
// registers them under their config type names.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/energyledger/core/factory"
	coresource "github.com/kilianp07/energyledger/core/source"
)

func init() {
	_ = coresource.Register("csv", func(conf map[string]any) (coresource.Source, error) {
		var c struct {
			Dir string `json:"dir"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Dir == "" {
			return nil, fmt.Errorf("csv: dir is required")
		}
		return NewCSVSource(c.Dir), nil
	})

	_ = coresource.Register("sqlite", func(conf map[string]any) (coresource.Source, error) {
		c := struct {
			Path string `json:"path"`
		}{Path: "energyledger.db"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		src, err := NewSQLiteSource(c.Path)
		if err != nil {
			return nil, err
		}
		return src, nil
	})

	_ = coresource.Register("postgres", func(conf map[string]any) (coresource.Source, error) {
		var c struct {
			DSN string `json:"dsn"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.DSN == "" {
			return nil, fmt.Errorf("postgres: dsn is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		src, err := NewPostgresSource(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return src, nil
	})

	_ = coresource.Register("influx", func(conf map[string]any) (coresource.Source, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, fmt.Errorf("influx: url and bucket are required")
		}
		return NewInfluxSource(c), nil
	})

	_ = coresource.Register("mongo", func(conf map[string]any) (coresource.Source, error) {
		var c MongoConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src, err := NewMongoSource(ctx, c)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}
