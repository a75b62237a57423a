package dataset

import "sync"

// Generator はバッチ列の供給元
type Generator interface {
	Next() (*Batch, error)
}

var (
	_ Generator = (*TrainGenerator)(nil)
	_ Generator = (*EvalGenerator)(nil)
	_ Generator = (*Prefetcher)(nil)
)

// Prefetcher は背後のGeneratorを別ゴルーチンで実行し、常に1バッチ先読みする
// バッチの順序と内容は背後の生成器そのままで、構築だけが消費と重なる
type Prefetcher struct {
	ch   chan prefetched
	stop chan struct{}
	once sync.Once
}

type prefetched struct {
	batch *Batch
	err   error
}

// NewPrefetcher は先読み付きの生成器を作成する
// 使い終わったらCloseで先読みゴルーチンを止めること
func NewPrefetcher(g Generator) *Prefetcher {
	p := &Prefetcher{
		ch:   make(chan prefetched, 1),
		stop: make(chan struct{}),
	}
	go p.run(g)
	return p
}

func (p *Prefetcher) run(g Generator) {
	defer close(p.ch)
	for {
		b, err := g.Next()
		select {
		case p.ch <- prefetched{batch: b, err: err}:
		case <-p.stop:
			return
		}
		// 背後の生成器が尽きるか失敗したら先読みも終える
		if b == nil || err != nil {
			return
		}
	}
}

// Next は先読み済みのバッチを返す
// 背後の生成器の戻り値を同じ順序でそのまま引き渡し、
// Closeの後は残りを流し切ってからnilを返す
func (p *Prefetcher) Next() (*Batch, error) {
	v, ok := <-p.ch
	if !ok {
		return nil, nil
	}
	return v.batch, v.err
}

// Close は先読みゴルーチンを停止する。複数回呼んでも安全
func (p *Prefetcher) Close() {
	p.once.Do(func() { close(p.stop) })
}
