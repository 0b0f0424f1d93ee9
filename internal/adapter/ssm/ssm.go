package ssm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

const DefaultPrefix = "/pmp/"

var ErrParameterNotFound = errors.New("parameter not found")

var _ port.ParameterStore = (*ParameterStore)(nil)

type Client interface {
	GetParameter(
		ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// A ParameterStore reads parameters under a fixed name prefix.
type ParameterStore struct {
	cl     Client
	prefix string
}

func NewParameterStore(cl Client, prefix string) ParameterStore {
	return ParameterStore{cl: cl, prefix: NormalizePrefix(prefix)}
}

// NormalizePrefix wraps prefix in slashes, "pmp" becomes "/pmp/".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return DefaultPrefix
	}
	return "/" + prefix + "/"
}

func (s ParameterStore) Get(ctx context.Context, name string) (string, error) {
	const op = "ParameterStore.Get"

	v, found, err := s.Lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", fmt.Errorf("%s: %q: %w", op, s.prefix+name, ErrParameterNotFound)
	}
	return v, nil
}

func (s ParameterStore) Lookup(ctx context.Context, name string) (string, bool, error) {
	const op = "ParameterStore.Lookup"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	fullName := s.prefix + name
	out, err := s.cl.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(fullName),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			log.Debug("parameter is absent", "name", fullName)
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s: %q: %w", op, fullName, err)
	}

	var v string
	if out.Parameter != nil {
		v = aws.ToString(out.Parameter.Value)
	}
	log.Debug("parameter resolved", "name", fullName, "value", v)
	return v, true, nil
}
