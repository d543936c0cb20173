// Package searchindex defines the search-index collaborator contract
// (spec.md §6.4) and a reference implementation backed by chromem-go.
//
// spec.md places the vector-search service itself out of core scope;
// per SPEC_FULL.md's Resolved Decision #4, the production contract is
// the Collaborator interface alone. The chromem-go implementation here
// exercises that dependency as test/reference infrastructure, grounded
// on the teacher's own chromem-go usage for local collection search.
package searchindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ternarybob/taskgraph/internal/chunk"
)

// Hit is one search result (spec.md §6.4).
type Hit struct {
	ChunkID string
	TaskID  string
	Score   float32
	Payload map[string]string
}

// Filters narrows a Search call.
type Filters struct {
	Workspace string
	TaskID    string
}

// Collaborator is the contract the core depends on; chromem-go backs
// one concrete implementation but nothing in core scope requires it
// specifically.
type Collaborator interface {
	Upsert(ctx context.Context, chunks []chunk.Chunk) error
	Search(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error)
}

// CollectionName derives a content-addressed collection name from a
// workspace path: lowercased and separator-normalized before hashing,
// so the same workspace resolves to one collection regardless of case
// or path-separator style (spec.md §6.4).
func CollectionName(workspace string) string {
	normalized := strings.ToLower(strings.ReplaceAll(workspace, "\\", "/"))
	sum := sha256.Sum256([]byte(normalized))
	return "ws-" + hex.EncodeToString(sum[:])[:16]
}

// ChromemCollaborator is a local, in-process reference implementation
// of Collaborator backed by github.com/philippgille/chromem-go.
type ChromemCollaborator struct {
	db *chromem.DB
}

// NewChromemCollaborator creates a collaborator over an in-memory
// chromem-go database.
func NewChromemCollaborator() *ChromemCollaborator {
	return &ChromemCollaborator{db: chromem.NewDB()}
}

// Upsert writes chunks into their content-addressed collection,
// one collection per distinct workspace among the batch.
func (c *ChromemCollaborator) Upsert(ctx context.Context, chunks []chunk.Chunk) error {
	byWorkspace := make(map[string][]chunk.Chunk)
	for _, ch := range chunks {
		byWorkspace[ch.Workspace] = append(byWorkspace[ch.Workspace], ch)
	}

	for workspace, group := range byWorkspace {
		coll, err := c.db.GetOrCreateCollection(CollectionName(workspace), nil, nil)
		if err != nil {
			return err
		}

		docs := make([]chromem.Document, 0, len(group))
		for _, ch := range group {
			docs = append(docs, chromem.Document{
				ID:      ch.ID,
				Content: ch.Content,
				Metadata: map[string]string{
					"task_id":         ch.TaskID,
					"chunk_type":      string(ch.ChunkType),
					"task_title":      ch.TaskTitle,
					"host_identifier": ch.HostIdentifier,
				},
			})
		}
		if err := coll.AddDocuments(ctx, docs, 1); err != nil {
			return err
		}
	}

	return nil
}

// Search queries the collection for filters.Workspace (required: the
// collaborator is collection-scoped per workspace) and returns hits
// sorted by score descending, applying an optional task_id filter
// through chromem-go's exact-match metadata filter.
func (c *ChromemCollaborator) Search(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error) {
	coll := c.db.GetCollection(CollectionName(filters.Workspace), nil)
	if coll == nil {
		return nil, nil
	}

	n := limit
	if n <= 0 || n > coll.Count() {
		n = coll.Count()
	}
	if n == 0 {
		return nil, nil
	}

	var where map[string]string
	if filters.TaskID != "" {
		where = map[string]string{"task_id": filters.TaskID}
	}

	results, err := coll.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ChunkID: r.ID,
			TaskID:  r.Metadata["task_id"],
			Score:   r.Similarity,
			Payload: r.Metadata,
		})
	}
	return hits, nil
}
