// Package metrics exposes prometheus/client_golang counters/gauges for
// the core's operational health: instructions retired, exceptions taken
// by cause, TLB hit/miss, and decrementer fires. Nothing in internal/cpu
// imports this package: machine.New creates a *Recorder and keeps it on
// the Machine, but the interpreter does not call into it, so the
// collectors only move if host code updates them (design notes'
// "explicit parameters, not globals" rule applies here too).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder owns the registered collectors for one machine instance.
type Recorder struct {
	Registry *prometheus.Registry

	InstructionsTotal prometheus.Counter
	ExceptionsTotal   *prometheus.CounterVec
	TLBHits           prometheus.Counter
	TLBMisses         prometheus.Counter
	DecrementerFires  prometheus.Counter
}

// New builds and registers a fresh Recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		Registry: reg,
		InstructionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ppc32",
			Name:      "instructions_retired_total",
			Help:      "Instructions successfully executed by the core.",
		}),
		ExceptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppc32",
			Name:      "exceptions_total",
			Help:      "Architected exceptions raised, by cause.",
		}, []string{"cause"}),
		TLBHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ppc32",
			Name:      "tlb_hits_total",
			Help:      "Address translations served from the TLB.",
		}),
		TLBMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ppc32",
			Name:      "tlb_misses_total",
			Help:      "Address translations requiring a page-table walk.",
		}),
		DecrementerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ppc32",
			Name:      "decrementer_fires_total",
			Help:      "Decrementer exceptions delivered.",
		}),
	}
	reg.MustRegister(r.InstructionsTotal, r.ExceptionsTotal, r.TLBHits, r.TLBMisses, r.DecrementerFires)
	return r
}
