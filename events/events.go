package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/tcxslim/api"
)

// Processed is a document that was reduced and written.
type Processed struct {
	Source      string
	Output      string
	Fingerprint uint64
	Result      *api.Result
}

func (p *Processed) Summary() api.Summary {
	return p.Result.Summary(p.Source, p.Output, p.Fingerprint)
}

// Failed is a document that could not be processed.
type Failed struct {
	Source string
	Err    error
}

// ProcessedFeed is emitted for every document successfully reduced and written.
// Send blocks until every subscriber has received, so subscribers should
// buffer their channels.
var ProcessedFeed = event.FeedOf[*Processed]{}

// FailedFeed is emitted for every document that failed at any stage.
var FailedFeed = event.FeedOf[*Failed]{}
