package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the server's prometheus collectors. Every series is
// labelled with the runtime's spec name.
type Metrics struct {
	blocks      *prometheus.CounterVec
	extrinsics  *prometheus.CounterVec
	validations *prometheus.CounterVec
	blockWeight *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtcore_blocks",
				Help: "Number of blocks executed or built, by outcome.",
			},
			[]string{"runtime", "op", "outcome"},
		),
		extrinsics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtcore_extrinsics_applied",
				Help: "Number of extrinsics applied by block builders, by outcome.",
			},
			[]string{"runtime", "outcome"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtcore_validate_transaction",
				Help: "Number of pool validations, by result.",
			},
			[]string{"runtime", "result"},
		),
		blockWeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rtcore_last_block_weight",
				Help: "Weight consumed by the last committed block.",
			},
			[]string{"runtime"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.blocks, m.extrinsics, m.validations, m.blockWeight)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
