package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"hfvqe"
	"hfvqe/chem"
	"hfvqe/store"
)

const (
	fnameTrajectory = "trajectory.csv"
	fnameDB         = "trajectory.db"
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.txt"
)

var (
	runDir   = flag.String("d", filepath.Join("runs", "hfvqe"), "run directory")
	shots    = flag.Int("shots", 100000, "shots per measurement setting, 0 for exact expectations")
	maxIters = flag.Int("iters", 100, "maximum optimization iterations")
	readout  = flag.Float64("readout", 0, "per-qubit readout flip probability")
)

type Statistics struct {
	n       int
	spacing float64

	SCFEnergy  float64
	Energy     float64
	EnergyErr  float64
	Iterations int
}

func solve(dir string, n int, spacing float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	sys, err := chem.NewSystem(chem.HydrogenChain(n, spacing))
	if err != nil {
		return errors.Wrap(err, "")
	}

	o := hfvqe.NewObjective(sys, *shots, uint64(n)<<32+uint64(spacing*1e6))
	o.ReadoutError = *readout
	res, err := hfvqe.Optimize(o, initialRotation(sys), *maxIters)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := writeTrajectory(dir, res.Trajectory); err != nil {
		return errors.Wrap(err, "")
	}

	stats := Statistics{
		SCFEnergy:  sys.SCFEnergy,
		Energy:     res.Energy,
		EnergyErr:  res.EnergyErr,
		Iterations: len(res.Trajectory),
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// initialRotation displaces every occupied-virtual pair so that the optimizer
// starts away from the minimum.
func initialRotation(sys *chem.System) *mat.Dense {
	kappa := mat.NewDense(sys.Norb, sys.Norb, nil)
	for o := 0; o < sys.Nocc; o++ {
		for v := sys.Nocc; v < sys.Norb; v++ {
			kappa.Set(o, v, -0.3)
			kappa.Set(v, o, 0.3)
		}
	}
	return hfvqe.Expm(kappa)
}

func writeTrajectory(dir string, trajectory []hfvqe.Iteration) error {
	db, err := store.Open(filepath.Join(dir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err = db.InsertAll(ctx, trajectory)
	if err1 := db.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err != nil {
		return errors.Wrap(err, "")
	}

	f, err := os.Create(filepath.Join(dir, fnameTrajectory))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)
	if err1 := w.Write([]string{"step", "energy", "raw_energy", "energy_err", "grad_norm", "seconds"}); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	for _, it := range trajectory {
		row := []string{
			strconv.Itoa(it.Step),
			strconv.FormatFloat(it.Energy, 'f', -1, 64),
			strconv.FormatFloat(it.RawEnergy, 'f', -1, 64),
			strconv.FormatFloat(it.EnergyErr, 'f', -1, 64),
			strconv.FormatFloat(it.GradNorm, 'f', -1, 64),
			strconv.FormatFloat(it.Seconds, 'f', -1, 64),
		}
		if err1 := w.Write(row); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}
	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func gather(dir string) ([]Statistics, error) {
	stats := make([]Statistics, 0)
	nEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for _, nent := range nEntries {
		n, err := strconv.Atoi(nent.Name())
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}

		ndir := filepath.Join(dir, nent.Name())
		sEntries, err := os.ReadDir(ndir)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}
		for _, sent := range sEntries {
			spacing, err := strconv.ParseFloat(sent.Name(), 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}

			sb, err := os.ReadFile(filepath.Join(ndir, sent.Name(), fnameStatistics))
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}
			s := Statistics{n: n, spacing: spacing}
			if err := json.Unmarshal(sb, &s); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}
			stats = append(stats, s)
		}
	}
	return stats, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	type config struct {
		n       int
		spacing float64
	}
	configs := make([]config, 0)
	// Dissociation curve of H2, plus a short hydrogen chain.
	for _, spacing := range []float64{1.0, 1.2, 1.4, 1.8, 2.2, 2.6} {
		configs = append(configs, config{n: 2, spacing: spacing})
	}
	configs = append(configs, config{n: 4, spacing: 1.8})

	// Solve for each molecule.
	for _, c := range configs {
		dir := filepath.Join(*runDir, strconv.Itoa(c.n), fmt.Sprintf("%f", c.spacing))
		if err := solve(dir, c.n, c.spacing); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %f", c.n, c.spacing))
		}
		log.Printf("%d %f", c.n, c.spacing)
	}

	// Gather results and print them.
	stats, err := gather(*runDir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("n,spacing,shots,e_scf,e_est,e_err,iterations\n")
	for _, s := range stats {
		fmt.Printf("%d,%f,%d,%f,%f,%f,%d\n", s.n, s.spacing, *shots, s.SCFEnergy, s.Energy, s.EnergyErr, s.Iterations)
	}
	return nil
}
