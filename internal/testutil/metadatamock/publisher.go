package metadatamock

import (
	"context"
	"sync"

	"tuition-escrow/internal/domain/metadata"
)

var _ metadata.Publisher = (*Publisher)(nil)

// Publisher records every published document. With PublishFn unset it
// returns "ipfs://" + the agreement id.
type Publisher struct {
	PublishFn func(ctx context.Context, name string, doc metadata.Document) (string, error)

	mu        sync.Mutex
	Published []metadata.Document
}

func (p *Publisher) Publish(ctx context.Context, name string, doc metadata.Document) (string, error) {
	p.mu.Lock()
	p.Published = append(p.Published, doc)
	p.mu.Unlock()
	if p.PublishFn != nil {
		return p.PublishFn(ctx, name, doc)
	}
	return "ipfs://" + doc.AgreementID, nil
}

func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}
