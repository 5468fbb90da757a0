package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/ppiankov/mailwarden/internal/model"
)

// wrapAPIErr maps Google API failures onto the error taxonomy: auth
// failures stay loud, 404s become typed not-found errors, everything
// else is wrapped with the operation name.
func wrapAPIErr(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &model.AuthError{Service: "google", Err: err}
		case http.StatusNotFound:
			if id != "" {
				return &model.NotFoundError{Kind: kind, ID: id}
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFoundGroup(name string) error {
	return &model.NotFoundError{Kind: "group", ID: name}
}

func isNotFound(err error) bool {
	var nf *model.NotFoundError
	return errors.As(err, &nf)
}
