package domain

// Metadata keys carried by catalog entries.
const (
	MetaArchiveURL = "archive_url"
	MetaSSHURL     = "ssh_url"
	MetaGitPullURL = "git_pull_url"
	MetaUpdatedAt  = "updated_at"
)

// CatalogEntry is one remote item as reported by a listing page.
type CatalogEntry struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Catalog is the accumulated listing for one item kind. Order preserves
// page arrival order. Truncated is set when a page exhausted its retries
// and the listing stopped short of the final page.
type Catalog struct {
	Kind      ItemKind                `json:"kind"`
	Entries   map[string]CatalogEntry `json:"entries"`
	Order     []string                `json:"order"`
	Truncated bool                    `json:"truncated"`
}

func NewCatalog(kind ItemKind) *Catalog {
	return &Catalog{
		Kind:    kind,
		Entries: make(map[string]CatalogEntry),
		Order:   make([]string, 0),
	}
}

// Add inserts an entry, keeping first-seen position on id collision.
// Later pages overwrite the stored entry; well-formed listings never collide.
func (c *Catalog) Add(entry CatalogEntry) {
	if _, seen := c.Entries[entry.ID]; !seen {
		c.Order = append(c.Order, entry.ID)
	}
	c.Entries[entry.ID] = entry
}

func (c *Catalog) Len() int {
	return len(c.Entries)
}
