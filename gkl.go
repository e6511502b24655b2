package partialsvd

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// =============================================================================
// Golub–Kahan–Lanczos partial SVD
// =============================================================================
//
// Estimate computes the largest few singular values of a linear operator by
// extending a Golub–Kahan–Lanczos bidiagonalization one step per iteration:
//
//   β v = p                (normalize the right residual)
//   α u = A v − β u_prev   (left recurrence)
//   β p = Aᵀ u − α v       (right recurrence)
//
// The singular values of the accumulated bidiagonal matrix (Ritz values)
// approximate the operator's extreme singular values. Each iteration the
// bidiagonal matrix is refactorized and every Ritz value gets an error bound
// from the trailing entries of its singular vectors; values whose bound
// clears the threshold count as converged. Orthogonality lost to roundoff is
// repaired by projecting the working residual against every retained basis
// vector (complete reorthogonalization).
//
// The process stops on whichever comes first: enough converged values, an
// exhausted invariant subspace (residual norm below threshold), or the
// iteration cap. All three are normal outcomes of differing quality, never
// errors.

// ErrZeroStartVector reports a start vector with zero norm, which cannot
// seed the Krylov process.
var ErrZeroStartVector = errors.New("partialsvd: zero-norm start vector")

// defaultThreshold is 0.1·sqrt(machine epsilon for float64), the
// precision-derived default for both thresholds.
var defaultThreshold = 0.1 * math.Sqrt(math.Nextafter(1, 2)-1)

// Config controls a single estimation run. The zero value is usable but
// disables reorthogonalization; start from DefaultConfig.
type Config struct {
	// NumValues is the target number of converged singular values.
	// Default: 6.
	NumValues int

	// MaxIterations caps the Lanczos process. Default: min(m, n), the
	// largest Krylov dimension reachable from a single start vector.
	MaxIterations int

	// StartVector is the initial right direction of length n. It need not
	// be normalized; its norm serves as the initial β. Default: a random
	// unit vector.
	StartVector []float64

	// BetaThreshold gates both invariant-subspace detection and the
	// per-value convergence filter. Default: 0.1·sqrt(machine epsilon).
	BetaThreshold float64

	// SigmaThreshold is the nominal value-convergence tolerance. It is
	// accepted for interface stability but not consulted: the convergence
	// filter uses BetaThreshold for both checks.
	// Default: 0.1·sqrt(machine epsilon).
	SigmaThreshold float64

	// CompleteReorthogonalization projects the working residual against
	// every retained basis vector each iteration. Partial or selective
	// reorthogonalization is not implemented; leave this enabled.
	CompleteReorthogonalization bool

	// Logger receives the end-of-run diagnostic summary at Info level.
	// nil uses slog.Default. Diagnostics never affect returned values.
	Logger *slog.Logger

	// Seed for the random start vector when StartVector is nil.
	// 0 = use current time.
	Seed int64
}

// DefaultConfig returns the standard configuration: six values, complete
// reorthogonalization, thresholds derived from float64 precision at call
// time.
func DefaultConfig() Config {
	return Config{
		NumValues:                   6,
		CompleteReorthogonalization: true,
	}
}

// Termination identifies which exit path ended the iteration.
type Termination int

const (
	// TerminationConverged: at least NumValues Ritz values passed the
	// error-bound filter.
	TerminationConverged Termination = iota

	// TerminationInvariantSubspace: the residual norm fell below
	// BetaThreshold; the start vector spans an invariant subspace and no
	// further directions are reachable from it.
	TerminationInvariantSubspace

	// TerminationMaxIterations: the iteration cap was reached; the result
	// is best-effort.
	TerminationMaxIterations
)

func (t Termination) String() string {
	switch t {
	case TerminationConverged:
		return "converged"
	case TerminationInvariantSubspace:
		return "invariant subspace"
	case TerminationMaxIterations:
		return "max iterations"
	default:
		return fmt.Sprintf("Termination(%d)", int(t))
	}
}

// Stats reports diagnostic counters from a completed estimation.
type Stats struct {
	// Iterations actually performed.
	Iterations int

	// MulVecs counts operator applications, forward and adjoint.
	MulVecs int

	// ResidualNorm is the final β.
	ResidualNorm float64

	// ApproxError is the final ω², the running estimate of the squared
	// Frobenius-norm error of the partial bidiagonalization.
	ApproxError float64

	// Termination records the exit path.
	Termination Termination
}

// Result of an estimation.
type Result struct {
	// Values holds the estimated singular values in descending order. On
	// the converged path these are exactly the values that passed the
	// error-bound filter; on the invariant-subspace path they are all
	// Ritz values of the exhausted subspace.
	Values []float64

	// Bidiagonal is the k×k upper-bidiagonal matrix accumulated over the
	// k iterations performed, kept for downstream refinement or
	// diagnostics. nil if no iteration completed.
	Bidiagonal *mat.Dense

	Stats Stats
}

// Estimate computes the largest NumValues singular values of a. It blocks
// until one of the three termination conditions is met and returns the
// converged values with the accumulated bidiagonal matrix. The only error
// returns are contract violations (malformed start vector, empty operator)
// and a failed bidiagonal factorization; every numerical termination path
// returns a nil error.
func Estimate(a Operator, cfg Config) (Result, error) {
	m, n := a.Dims()
	if m <= 0 || n <= 0 {
		return Result{}, fmt.Errorf("partialsvd: operator has empty dimensions %d×%d", m, n)
	}

	if cfg.NumValues <= 0 {
		cfg.NumValues = 6
	}
	minDim := m
	if n < minDim {
		minDim = n
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = minDim
	}
	if cfg.BetaThreshold <= 0 {
		cfg.BetaThreshold = defaultThreshold
	}
	if cfg.SigmaThreshold <= 0 {
		cfg.SigmaThreshold = defaultThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p, err := startVector(cfg, n)
	if err != nil {
		return Result{}, err
	}

	var (
		u     = make([]float64, m)
		v     = make([]float64, n)
		r     = make([]float64, m)
		basis = make([][]float64, 0, maxIter)

		coeffs      = newBidiagCoeffs(maxIter)
		estimates   []ritzEstimate
		converged   []float64
		alpha, beta float64

		stats Stats
	)

	omega2Init := a.Norm()
	omega2Init *= omega2Init
	omega2 := omega2Init

	stats.Termination = TerminationMaxIterations

	for k := 1; k <= maxIter; k++ {
		if m >= n && cfg.CompleteReorthogonalization {
			orthogonalize(p, basis)
		}

		beta = floats.Norm(p, 2)
		if beta == 0 {
			// Residual vanished exactly: the subspace is exhausted.
			// Report all Ritz values accumulated so far rather than
			// dividing by zero.
			stats.Termination = TerminationInvariantSubspace
			converged = allValues(estimates)
			break
		}
		copy(v, p)
		floats.Scale(1/beta, v)

		a.MulVec(r, v)
		stats.MulVecs++
		if k > 1 {
			floats.AddScaled(r, -beta, u)
		}
		if m < n && cfg.CompleteReorthogonalization {
			orthogonalize(r, basis)
		}

		alpha = floats.Norm(r, 2)
		if alpha == 0 {
			stats.Termination = TerminationInvariantSubspace
			converged = allValues(estimates)
			beta = 0
			break
		}
		copy(u, r)
		floats.Scale(1/alpha, u)

		a.MulVecTrans(p, u)
		stats.MulVecs++
		floats.AddScaled(p, -alpha, v)
		beta = floats.Norm(p, 2)

		coeffs.append(alpha, beta)
		stats.Iterations = k

		omega2 -= alpha * alpha
		if coeffs.len() > 1 {
			prev := coeffs.betas[coeffs.len()-2]
			omega2 -= prev * prev
		}

		d := math.Sqrt(alpha * beta)
		estimates, err = coeffs.ritzEstimates(d)
		if err != nil {
			return Result{}, err
		}

		// The converged set is rebuilt from scratch every iteration:
		// convergence is always judged against the latest bidiagonal
		// matrix, never cached from a previous one.
		converged = converged[:0]
		for _, e := range estimates {
			if e.bound <= cfg.BetaThreshold {
				converged = append(converged, e.value)
			}
		}

		// Retain this iteration's basis vector as a reorthogonalization
		// target, one per iteration whether or not anything converged.
		if m >= n {
			basis = append(basis, append([]float64(nil), v...))
		} else {
			basis = append(basis, append([]float64(nil), u...))
		}

		if beta <= cfg.BetaThreshold {
			stats.Termination = TerminationInvariantSubspace
			converged = allValues(estimates)
			break
		}
		if len(converged) >= cfg.NumValues {
			stats.Termination = TerminationConverged
			break
		}
	}

	if stats.Termination == TerminationInvariantSubspace && stats.Iterations != minDim {
		logger.Info("invariant subspace found before the smaller operator dimension; "+
			"restart with a different start vector to reach further directions",
			"iterations", stats.Iterations,
			"min_dim", minDim,
		)
	}

	values := append([]float64(nil), converged...)
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	stats.ResidualNorm = beta
	stats.ApproxError = omega2

	errPct := math.NaN()
	if omega2Init > 0 {
		errPct = 100 * omega2 / omega2Init
	}
	logger.Info("bidiagonalization finished",
		"iterations", stats.Iterations,
		"values", len(values),
		"approx_error", omega2,
		"approx_error_pct", errPct,
		"residual_norm", beta,
		"termination", stats.Termination.String(),
	)

	res := Result{Values: values, Stats: stats}
	if coeffs.len() > 0 {
		res.Bidiagonal = coeffs.dense()
	}
	return res, nil
}

// startVector returns the initial right residual: a copy of the configured
// start vector, or a seeded random unit vector.
func startVector(cfg Config, n int) ([]float64, error) {
	p := make([]float64, n)
	if cfg.StartVector != nil {
		if len(cfg.StartVector) != n {
			return nil, fmt.Errorf("partialsvd: start vector length %d, operator has %d columns",
				len(cfg.StartVector), n)
		}
		copy(p, cfg.StartVector)
		if floats.Norm(p, 2) == 0 {
			return nil, ErrZeroStartVector
		}
		return p, nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range p {
		p[i] = rng.NormFloat64()
	}
	floats.Scale(1/floats.Norm(p, 2), p)
	return p, nil
}

// orthogonalize removes from x its projection onto each basis vector, in
// accumulation order. The order matters numerically, not mathematically.
func orthogonalize(x []float64, basis [][]float64) {
	for _, w := range basis {
		c := vek.Dot(w, x)
		floats.AddScaled(x, -c, w)
	}
}

func allValues(estimates []ritzEstimate) []float64 {
	values := make([]float64, len(estimates))
	for i, e := range estimates {
		values[i] = e.value
	}
	return values
}
