package sona

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	loraRank   = 2
	loraBaseLR = 0.001
)

// MicroLoRA is a rank-2 low-rank adapter applied to query embeddings:
// embedding' = embedding + B*(A*embedding). Total parameters are
// 2*dims*rank, small enough to update per-query without meaningfully
// slowing search.
type MicroLoRA struct {
	dims int
	a    *mat.Dense // rank x dims, down-projection
	b    *mat.Dense // dims x rank, up-projection
	lr   float64
	updateCount uint32
}

// NewMicroLoRA builds an adapter for the given embedding dimensionality,
// Xavier-scaled and seeded from a fixed LCG so repeated runs without
// persisted state behave identically.
func NewMicroLoRA(dims int) *MicroLoRA {
	a := mat.NewDense(loraRank, dims, nil)
	b := mat.NewDense(dims, loraRank, nil)

	scale := math.Sqrt(2.0 / float64(dims+loraRank))

	var rngState uint64 = 0x12345678deadbeef
	next := func() float64 {
		rngState = rngState*6364136223846793005 + 1
		return float64(rngState>>33)/float64(math.MaxUint32) - 0.5
	}
	for r := 0; r < loraRank; r++ {
		for c := 0; c < dims; c++ {
			a.Set(r, c, next()*scale)
		}
	}
	for r := 0; r < dims; r++ {
		for c := 0; c < loraRank; c++ {
			b.Set(r, c, next()*scale)
		}
	}

	return &MicroLoRA{dims: dims, a: a, b: b, lr: loraBaseLR}
}

// Forward applies embedding' = embedding + B*(A*embedding).
func (l *MicroLoRA) Forward(embedding []float32) []float32 {
	emb := toFloat64(embedding)
	embVec := mat.NewVecDense(l.dims, emb)

	hidden := mat.NewVecDense(loraRank, nil)
	hidden.MulVec(l.a, embVec)

	delta := mat.NewVecDense(l.dims, nil)
	delta.MulVec(l.b, hidden)

	out := make([]float32, l.dims)
	for i := 0; i < l.dims; i++ {
		out[i] = float32(emb[i] + delta.AtVec(i))
	}
	return out
}

// UpdateFromSignal nudges the adapter so that queryEmb moves toward
// targetEmb, using a decaying learning rate and a gradient approximation:
// B is updated from the outer product of the desired delta and the current
// hidden state, then A is updated from the outer product of the
// (already-updated) B's backprojection of delta and the query embedding.
func (l *MicroLoRA) UpdateFromSignal(queryEmb, targetEmb []float32) {
	l.updateCount++
	lr := loraBaseLR / (1.0 + 0.005*float64(l.updateCount))

	query := toFloat64(queryEmb)
	target := toFloat64(targetEmb)

	delta := make([]float64, l.dims)
	for i := range delta {
		delta[i] = target[i] - query[i]
	}
	queryVec := mat.NewVecDense(l.dims, query)
	deltaVec := mat.NewVecDense(l.dims, delta)

	hidden := mat.NewVecDense(loraRank, nil)
	hidden.MulVec(l.a, queryVec)

	var bDelta mat.Dense
	bDelta.Outer(lr, deltaVec, hidden)
	l.b.Add(l.b, &bDelta)

	gradHidden := mat.NewVecDense(loraRank, nil)
	gradHidden.MulVec(l.b.T(), deltaVec)

	var aDelta mat.Dense
	aDelta.Outer(lr, gradHidden, queryVec)
	l.a.Add(l.a, &aDelta)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// flatten returns A's data followed by B's data, the layout EwcRegularizer
// tracks Fisher information and star weights against.
func (l *MicroLoRA) flatten() []float64 {
	out := make([]float64, 0, l.a.RawMatrix().Rows*l.a.RawMatrix().Cols+l.b.RawMatrix().Rows*l.b.RawMatrix().Cols)
	out = append(out, l.a.RawMatrix().Data...)
	out = append(out, l.b.RawMatrix().Data...)
	return out
}

func (l *MicroLoRA) aLen() int { return l.a.RawMatrix().Rows * l.a.RawMatrix().Cols }
