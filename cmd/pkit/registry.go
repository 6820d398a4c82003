// Command pkit is a CLI front-end for exploring pipelinekit: it registers a
// handful of demo pipelines against a live Bus, and lets a caller dispatch
// them, inspect their composition, and replay what the attached Recorder
// captured.
package main

import (
	"context"
)

// Demo is a self-contained pipeline registered with the CLI: a name, a
// one-line description, and a way to run it against a sample input.
type Demo interface {
	Name() string
	Description() string
	Run(ctx context.Context, arg string) (string, error)
	Diagram() string
}

func allDemos() []Demo {
	return []Demo{
		greetDemo,
		chargeDemo,
	}
}

func demoByName(name string) (Demo, bool) {
	for _, d := range allDemos() {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}
