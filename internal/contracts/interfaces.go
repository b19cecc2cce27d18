package contracts

import "context"

// FundamentalsSource yields the ingestion cycle's records.
// Malformed rows are skipped by the source, never fatal.
// ⭐ SSOT: quant stage input
type FundamentalsSource interface {
	Load(ctx context.Context) ([]FundamentalRecord, error)
}

// MacroProvider returns current interest and inflation rates
type MacroProvider interface {
	Fetch(ctx context.Context) (MacroIndicators, error)
}

// MentionProvider returns a ticker's mention count over the recent window
type MentionProvider interface {
	Mentions(ctx context.Context, ticker string) (int, error)
}

// TextProvider is one credential's handle on the text-generation service.
// Implementations classify failures as Transient/PermanentProviderError.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, c Completion) (string, error)
}

// ExcerptSource returns a source-document excerpt for a ticker ("" when none)
type ExcerptSource interface {
	Excerpt(ctx context.Context, ticker string) (string, error)
}

// SnapshotRepository persists ranking snapshots.
// Save replaces the latest snapshot atomically.
type SnapshotRepository interface {
	Save(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
}
