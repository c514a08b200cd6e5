package attribution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kildespor_chat_turns_total",
		Help: "Chat turns by outcome.",
	}, []string{"status"})

	headersParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kildespor_headers_parsed_total",
		Help: "Metadata headers parsed from retrieval contexts.",
	})

	sourcesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kildespor_sources_resolved_total",
		Help: "Sources produced per attribution path before filtering.",
	}, []string{"path"})

	sourcesFilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kildespor_sources_filtered_total",
		Help: "Sources dropped by the relevance filter.",
	})

	correctionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kildespor_correction_failures_total",
		Help: "Transcription-correction calls that fell back to the original answer.",
	})
)
