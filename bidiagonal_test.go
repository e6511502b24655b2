package partialsvd

import (
	"math"
	"testing"
)

func TestBidiagCoeffs_Dense(t *testing.T) {
	c := newBidiagCoeffs(4)
	c.append(1, 4)
	c.append(2, 5)
	c.append(3, 6)

	b := c.dense()
	r, cols := b.Dims()
	if r != 3 || cols != 3 {
		t.Fatalf("expected 3×3 matrix, got %d×%d", r, cols)
	}

	want := [3][3]float64{
		{1, 4, 0},
		{0, 2, 5},
		{0, 0, 3},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if got := b.At(i, j); got != want[i][j] {
				t.Errorf("entry (%d,%d) = %v, want %v", i, j, got, want[i][j])
			}
		}
	}
}

func TestBidiagCoeffs_RitzEstimates(t *testing.T) {
	// A single step with vanished residual has one exact Ritz value with
	// a zero bound.
	c := newBidiagCoeffs(1)
	c.append(2, 0)

	est, err := c.ritzEstimates(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(est) != 1 {
		t.Fatalf("expected 1 estimate, got %d", len(est))
	}
	if math.Abs(est[0].value-2) > 1e-15 {
		t.Errorf("ritz value = %v, want 2", est[0].value)
	}
	if est[0].bound != 0 {
		t.Errorf("bound = %v, want 0", est[0].bound)
	}
}

func TestBidiagCoeffs_RitzEstimatesOrderedWithBoundedError(t *testing.T) {
	c := newBidiagCoeffs(3)
	c.append(3, 1)
	c.append(2, 0.5)
	c.append(1, 0.25)

	d := math.Sqrt(1 * 0.25)
	est, err := c.ritzEstimates(d)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(est); i++ {
		if est[i].value > est[i-1].value {
			t.Errorf("ritz values out of order at %d: %v > %v", i, est[i].value, est[i-1].value)
		}
	}
	for i, e := range est {
		if e.bound < 0 || e.bound > d {
			t.Errorf("bound %d = %v outside [0, %v]", i, e.bound, d)
		}
	}
}
