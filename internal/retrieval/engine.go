package retrieval

import (
	"context"
	"log/slog"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/llm"
	"github.com/your-org/homewatch/internal/storage"
)

// Engine wires parse, retrieve, materialize and synthesize into the
// single answer operation exposed to the CLI and the API.
type Engine struct {
	parser       *Parser
	retriever    *Retriever
	materializer *Materializer
	synthesizer  *Synthesizer
}

// Store combines the lookups the engine needs from Postgres.
type Store interface {
	PersonLookup
	EventStore
}

func NewEngine(store Store, objects *storage.MinIOStore, client llm.Client, cfg config.Config) *Engine {
	return &Engine{
		parser:       NewParser(store),
		retriever:    NewRetriever(store, cfg.Retrieval),
		materializer: NewMaterializer(objects, cfg.Ingest.VideoBaseDir),
		synthesizer:  NewSynthesizer(client, cfg.Retrieval.MaxEvidence),
	}
}

// Ask answers one natural-language question.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	q := e.parser.Parse(ctx, question)
	slog.Info("parsed question", "query", q.String())

	evidence, err := e.retriever.Retrieve(ctx, q)
	if err != nil {
		return Answer{}, err
	}
	e.materializer.Materialize(ctx, evidence)
	return e.synthesizer.Synthesize(ctx, question, evidence, q), nil
}
