package domain

// Identified is anything with a collection-unique identifier.
type Identified interface {
	// GetID returns the identifier that is unique within its collection
	GetID() string
}

// Record is a collection element that can be re-keyed. WithID is used to
// give optimistic creates a provisional identifier.
type Record[T any] interface {
	Identified

	// WithID returns a copy of the record carrying id
	WithID(id string) T
}

// ListItem is the polymorphic interface for rows rendered in lists and
// matched by the local filter.
type ListItem interface {
	Identified

	// GetTitle returns the display title
	GetTitle() string

	// GetDescription returns secondary info for display (e.g., "backend · 80%")
	GetDescription() string
}

// ResourceKey distinguishes one cached collection type from another
type ResourceKey string

const (
	KeyPosts      ResourceKey = "posts"
	KeyProjects   ResourceKey = "projects"
	KeySkills     ResourceKey = "skills"
	KeyActivities ResourceKey = "activities"
)

// AllResourceKeys lists every cached collection, in tab order
func AllResourceKeys() []ResourceKey {
	return []ResourceKey{KeySkills, KeyProjects, KeyPosts, KeyActivities}
}

// NoticeLevel is the severity of a transient notification
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notifier surfaces transient messages (toasts) to the user.
type Notifier interface {
	Notify(level NoticeLevel, message string)
}

// NoOpNotifier discards notifications (for testing/batch operations).
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(NoticeLevel, string) {}
