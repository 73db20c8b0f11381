package schematic

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
)

// ErrInvalid is wrapped by every boundary validation failure.
var ErrInvalid = errors.New("schematic: invalid document")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func documentValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validatePoint, geom.Point{})
	})
	return validate
}

// validatePoint rejects NaN, infinite and out-of-range coordinates.
func validatePoint(sl validator.StructLevel) {
	p := sl.Current().Interface().(geom.Point)
	if !validCoordinate(p.X) {
		sl.ReportError(p.X, "X", "X", "coord", "")
	}
	if !validCoordinate(p.Y) {
		sl.ReportError(p.Y, "Y", "Y", "coord", "")
	}
}

func validCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= CoordinateLimit
}

// Validate checks the constraints a document must satisfy before it is
// handed to the checker: required ids, finite in-range coordinates and the
// size limits. Wire point counts are not checked here: a wire
// with fewer than two points is an ERC finding, not a load failure.
func (s *Schematic) Validate() error {
	err := documentValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// wireNamespace seeds the name-based ids given to anonymous wires.
var wireNamespace = uuid.MustParse("5c0f5a8e-3c2b-4c55-9a51-6f1b1c0de0a1")

// AssignWireIDs gives every wire without an id a stable name-based UUID
// derived from its index and geometry, so repeated loads of the same
// document produce the same ids.
func (s *Schematic) AssignWireIDs() {
	for i := range s.Wires {
		if s.Wires[i].ID != "" {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d", i)
		for _, p := range s.Wires[i].Points {
			fmt.Fprintf(&b, ";%g,%g", p.X, p.Y)
		}
		s.Wires[i].ID = uuid.NewSHA1(wireNamespace, []byte(b.String())).String()
	}
}
