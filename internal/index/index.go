package index

// View defines the read/refresh surface of the computed index.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type View interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(path string) error
	GetNote(path string) (*NoteRow, error)
	ListNotes(limit, offset int, tag string) ([]NoteRow, int, error)
	ListTags() ([]TagCount, error)
	PathsWithTag(tag string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Backlinks(targetID string) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies View at compile time.
var _ View = (*DB)(nil)
