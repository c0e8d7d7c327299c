package Iservices

import "context"

type ITtsService interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
