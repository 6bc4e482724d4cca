package submission

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/client/api"
	"github.com/biomateca/biomateca-backend/client/wizard"
	"github.com/biomateca/biomateca-backend/internal/domain"
)

var errNotAuthenticated = errors.New("inicia sesión para publicar un material")

// Submitter sends finished drafts to the backend. Unauthenticated calls
// fail before touching the network.
type Submitter struct {
	api *api.Client
}

func NewSubmitter(c *api.Client) *Submitter {
	return &Submitter{api: c}
}

func (s *Submitter) Create(ctx context.Context, d *wizard.Draft) (*domain.Material, api.Result) {
	return s.send(ctx, http.MethodPost, "/api/materials", d)
}

func (s *Submitter) Update(ctx context.Context, id uuid.UUID, d *wizard.Draft) (*domain.Material, api.Result) {
	return s.send(ctx, http.MethodPut, "/api/materials/"+id.String(), d)
}

func (s *Submitter) send(ctx context.Context, method, path string, d *wizard.Draft) (*domain.Material, api.Result) {
	if !s.api.Authenticated() {
		return nil, api.Normalize(errNotAuthenticated)
	}
	body, contentType, err := Encode(d)
	if err != nil {
		return nil, api.Normalize(err)
	}
	var created domain.Material
	if err := s.api.Do(ctx, method, path, bytes.NewReader(body), contentType, &created); err != nil {
		return nil, api.Normalize(err)
	}
	return &created, api.Result{Success: true}
}
