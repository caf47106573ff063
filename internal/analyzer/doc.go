// Package analyzer implements the three scoring engines. Each engine is a
// pure function of the parsed document tree and canonical URL: sub-scores
// are clamped to [0,100], the top-level score is derived from them, and the
// issues list flattens every sub-analysis's errors and recommendations. An
// engine never fails once markup is in hand; outbound probes degrade the
// affected sub-check to a zero score with an explanatory issue instead.
package analyzer
