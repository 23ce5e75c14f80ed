package domain

type ItemKind string

func (k ItemKind) String() string {
	return string(k)
}

const (
	ItemKindRepository ItemKind = "repositories"
	ItemKindGist       ItemKind = "gists"
)

var ItemKinds = []ItemKind{
	ItemKindRepository,
	ItemKindGist,
}

// ListingPath returns the API path that lists items of this kind.
func (k ItemKind) ListingPath() string {
	switch k {
	case ItemKindRepository:
		return "/user/repos"
	case ItemKindGist:
		return "/gists"
	default:
		return ""
	}
}

func (k ItemKind) GetKindName() string {
	switch k {
	case ItemKindRepository:
		return "Repositories"
	case ItemKindGist:
		return "Gists"
	default:
		return "Unknown"
	}
}
