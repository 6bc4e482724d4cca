// Package submission turns a finished draft into the multipart request the
// backend expects and drives create and edit calls through the shared API
// client.
package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"

	"github.com/biomateca/biomateca-backend/client/wizard"
)

type stepPayload struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"descripcion"`
	Order       int     `json:"orden_paso"`
	Image       *string `json:"imagen"`
	Video       *string `json:"video"`
}

// Encode renders the draft as a multipart body. Step order follows the
// slice order of d.Steps; binary parts for replaced media are keyed by the
// same orden_paso the pasos entry carries. The creator is never part of the
// payload, the server takes it from the session.
func Encode(d *wizard.Draft) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("nombre", d.Name); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("descripcion", d.Description); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "herramientas", d.Tools); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "composicion", d.Composition); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "propiedades_mecanicas", d.Mechanical); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "propiedades_perceptuales", d.Perceptual); err != nil {
		return nil, "", err
	}
	if err := writeJSONField(w, "propiedades_emocionales", d.Emotional); err != nil {
		return nil, "", err
	}
	if len(d.Collaborators) > 0 {
		if err := writeJSONField(w, "colaboradores", d.Collaborators); err != nil {
			return nil, "", err
		}
	}
	if d.ParentID != nil {
		if err := w.WriteField("material_padre_id", d.ParentID.String()); err != nil {
			return nil, "", err
		}
	}

	if err := encodeGallery(w, d); err != nil {
		return nil, "", err
	}
	if err := encodeSteps(w, d); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func encodeGallery(w *multipart.Writer, d *wizard.Draft) error {
	var kept []string
	var captions []string
	for _, item := range d.Gallery {
		switch item.Ref.Kind() {
		case wizard.MediaKept:
			kept = append(kept, item.Ref.URL())
		case wizard.MediaReplaced:
			captions = append(captions, item.Caption)
			if err := writeFilePart(w, "galeria", item.Ref.Name(), item.Ref.Data()); err != nil {
				return err
			}
		case wizard.MediaAbsent:
			// Removed photo: neither kept nor uploaded.
		}
	}
	if err := writeJSONField(w, "galeria_existente", kept); err != nil {
		return err
	}
	return writeJSONField(w, "galeria_textos", captions)
}

func encodeSteps(w *multipart.Writer, d *wizard.Draft) error {
	payload := make([]stepPayload, 0, len(d.Steps))
	for i, step := range d.Steps {
		order := i + 1
		entry := stepPayload{Description: step.Description, Order: order}
		if step.ID != nil {
			entry.ID = step.ID.String()
		}

		image, err := encodeStepMedia(w, fmt.Sprintf("paso_imagen_%d", order), step.Image)
		if err != nil {
			return err
		}
		entry.Image = image

		video, err := encodeStepMedia(w, fmt.Sprintf("paso_video_%d", order), step.Video)
		if err != nil {
			return err
		}
		entry.Video = video

		payload = append(payload, entry)
	}
	return writeJSONField(w, "pasos", payload)
}

// encodeStepMedia returns the URL to carry in the pasos entry: the stored
// URL for kept media, nil when the slot is empty or a replacement file was
// attached under the given part name.
func encodeStepMedia(w *multipart.Writer, partName string, ref wizard.MediaRef) (*string, error) {
	switch ref.Kind() {
	case wizard.MediaKept:
		url := ref.URL()
		return &url, nil
	case wizard.MediaReplaced:
		if err := writeFilePart(w, partName, ref.Name(), ref.Data()); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func writeJSONField(w *multipart.Writer, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return w.WriteField(name, string(raw))
}

func writeFilePart(w *multipart.Writer, field, filename string, data []byte) error {
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
