package wizard

// MediaRefKind distinguishes the three states a media slot can be in while
// editing: a stored file kept as-is, a freshly chosen replacement, or
// nothing at all. Consumers must switch over all three.
type MediaRefKind int

const (
	MediaAbsent MediaRefKind = iota
	MediaKept
	MediaReplaced
)

type MediaRef struct {
	kind MediaRefKind
	url  string
	name string
	data []byte
}

func AbsentMedia() MediaRef { return MediaRef{kind: MediaAbsent} }

func KeptMedia(url string) MediaRef { return MediaRef{kind: MediaKept, url: url} }

func ReplacedMedia(name string, data []byte) MediaRef {
	return MediaRef{kind: MediaReplaced, name: name, data: data}
}

func (m MediaRef) Kind() MediaRefKind { return m.kind }

// URL is only meaningful for MediaKept.
func (m MediaRef) URL() string { return m.url }

// Name and Data are only meaningful for MediaReplaced.
func (m MediaRef) Name() string { return m.name }
func (m MediaRef) Data() []byte { return m.data }

func (m MediaRef) Present() bool { return m.kind != MediaAbsent }
