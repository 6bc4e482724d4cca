package wizard

// Store drives the four-step submission form. It tracks which fields the
// user has touched so pristine fields render without error text, and it
// only blocks forward navigation, never backward.
type Store struct {
	draft   Draft
	step    Step
	touched map[string]bool
}

func NewStore() *Store {
	return &Store{touched: map[string]bool{}}
}

// NewStoreFromDraft seeds an edit session. Every field counts as touched
// so existing content is validated immediately.
func NewStoreFromDraft(d Draft) *Store {
	s := &Store{draft: d, touched: map[string]bool{}}
	for _, f := range allFields {
		s.touched[f] = true
	}
	return s
}

var allFields = []string{
	"nombre", "descripcion", "herramientas", "galeria",
	"propiedades_mecanicas", "propiedades_perceptuales", "propiedades_emocionales",
	"composicion", "pasos",
}

func (s *Store) Draft() *Draft { return &s.draft }
func (s *Store) Step() Step    { return s.step }

// Touch marks a field as user-edited so its errors become visible.
func (s *Store) Touch(field string) { s.touched[field] = true }

// Errors returns the current step's validation errors, filtered to
// touched fields.
func (s *Store) Errors() map[string]string {
	res := ValidateStep(&s.draft, s.step)
	out := map[string]string{}
	for field, msg := range res.FieldErrors {
		if s.touched[field] {
			out[field] = msg
		}
	}
	return out
}

// Next advances one step. It validates the current step against the full
// rule set, touched or not, and refuses to move while invalid.
func (s *Store) Next() bool {
	res := ValidateStep(&s.draft, s.step)
	if !res.Valid {
		for field := range res.FieldErrors {
			s.touched[field] = true
		}
		return false
	}
	if s.step < stepCount-1 {
		s.step++
	}
	return true
}

// Back moves to the previous step without validating.
func (s *Store) Back() {
	if s.step > 0 {
		s.step--
	}
}

// CanSubmit reports whether every step validates.
func (s *Store) CanSubmit() bool {
	for st := StepBasicInfo; st < stepCount; st++ {
		if !ValidateStep(&s.draft, st).Valid {
			return false
		}
	}
	return true
}
