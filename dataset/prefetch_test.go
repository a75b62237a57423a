package dataset

import (
	"fmt"
	"testing"

	ascErrors "github.com/soundscape-ml/ascgo/pkg/errors"
)

// scriptedGenerator は決まった数のバッチを順番に返し、その後はfailErrか
// 終端のnilを返す
type scriptedGenerator struct {
	total   int
	failErr error
	emitted int
}

func (g *scriptedGenerator) Next() (*Batch, error) {
	if g.emitted >= g.total {
		if g.failErr != nil {
			return nil, g.failErr
		}
		return nil, nil
	}
	g.emitted++
	return &Batch{Names: []string{fmt.Sprintf("clip-%02d", g.emitted)}}, nil
}

func TestPrefetcherOrder(t *testing.T) {
	p := NewPrefetcher(&scriptedGenerator{total: 5})
	defer p.Close()

	for i := 1; i <= 5; i++ {
		b, err := p.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if b == nil {
			t.Fatalf("Next() = nil at batch %d", i)
		}
		want := fmt.Sprintf("clip-%02d", i)
		if b.Names[0] != want {
			t.Errorf("Names[0] = %q, want %q", b.Names[0], want)
		}
	}

	// 尽きた後は何度呼んでもnil
	for i := 0; i < 2; i++ {
		b, err := p.Next()
		if err != nil {
			t.Fatalf("Next() after exhaustion error = %v", err)
		}
		if b != nil {
			t.Errorf("Next() after exhaustion = %v, want nil", b.Names)
		}
	}
}

func TestPrefetcherError(t *testing.T) {
	failErr := ascErrors.NewValueError("Next", "broken clip")
	p := NewPrefetcher(&scriptedGenerator{total: 2, failErr: failErr})
	defer p.Close()

	for i := 1; i <= 2; i++ {
		b, err := p.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if b == nil {
			t.Fatalf("Next() = nil at batch %d", i)
		}
	}

	if _, err := p.Next(); !ascErrors.Is(err, failErr) {
		t.Errorf("Next() error = %v, want %v", err, failErr)
	}
}

func TestPrefetcherClose(t *testing.T) {
	// 終端のない生成器でもCloseで先読みが止まる
	p := NewPrefetcher(&scriptedGenerator{total: 1 << 30})

	b, err := p.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b == nil {
		t.Fatal("Next() = nil, want batch")
	}

	p.Close()
	p.Close()
}
