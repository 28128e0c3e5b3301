package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"lazystack/internal/models"
	"lazystack/pkg/browser"
	"lazystack/pkg/config"
	"lazystack/pkg/filter"
	"lazystack/pkg/persist"
	"lazystack/pkg/synth"
	"lazystack/pkg/volume"
)

func runGenerate(_ context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	dir := fs.String("dir", env.cfg.Dataset.Dir, "Directory to write frame files into")
	prefix := fs.String("prefix", "frame_", "File name prefix")
	dtype := fs.String("dtype", "<u2", "Sample type as a NumPy typestr")
	fs.Parse(args)

	dt, err := models.ParseDtype(*dtype)
	if err != nil {
		return err
	}
	p := synth.DefaultParams()
	p.Prefix = *prefix
	p.Dtype = dt
	p.Frames = env.cfg.Synth.Frames
	p.Depth = env.cfg.Synth.Depth
	p.Height = env.cfg.Synth.Height
	p.Width = env.cfg.Synth.Width
	p.Seed = env.cfg.Synth.Seed
	p.Noise = env.cfg.Synth.Noise
	p.Blobs = env.cfg.Synth.Blobs

	paths, err := synth.Generate(*dir, p)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d frames of %d x %d x %d (%s) to %s\n", len(paths), p.Depth, p.Height, p.Width, dt, *dir)
	return nil
}

func runInfo(ctx context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	dir, pattern := env.datasetFlags(fs)
	stats := fs.Bool("stats", false, "Compute statistics over the whole volume")
	fs.Parse(args)

	ix, v, err := env.open(*dir, *pattern)
	if err != nil {
		return err
	}

	banner("DATASET")
	fmt.Printf("Files:  %d (%s .. %s)\n", ix.Len(), filepath.Base(ix.Files[0].Path), filepath.Base(ix.Files[ix.Len()-1].Path))
	fmt.Printf("Shape:  %v (T, Z, Y, X)\n", v.Shape())
	fmt.Printf("Dtype:  %s\n", v.Dtype())
	fmt.Printf("Volume: %s\n", v.ID())

	if *stats {
		b, err := v.ComputeAll(ctx, env.ex)
		if err != nil {
			return err
		}
		fmt.Printf("Stats:  %s\n", volume.Summarize(b))
	}
	return nil
}

func runBrowse(ctx context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	dir, pattern := env.datasetFlags(fs)
	t := fs.Int("t", 0, "Time index")
	z := fs.Int("z", 0, "Plane index")
	sequence := fs.String("sequence", "", "Render every index along this axis (t or z) instead of one plane")
	filterName := fs.String("filter", "none", "Filter applied before rendering: none, gaussian, minimum, maximum, threshold, lowpass")
	out := fs.String("out", filepath.Join(env.cfg.Output.Dir, "planes"), "Directory for rendered images")
	fs.Parse(args)

	_, v, err := env.open(*dir, *pattern)
	if err != nil {
		return err
	}
	if v, err = env.applyFilter(v, *filterName); err != nil {
		return err
	}
	b, err := browser.Attach(v, env.ex)
	if err != nil {
		return err
	}

	plane, err := b.Seek(ctx, *t, *z)
	if err != nil {
		return err
	}

	if *sequence != "" {
		axis, err := b.AxisIndex(*sequence)
		if err != nil {
			return err
		}
		r, err := browser.NewFileRenderer(*out, "slice_"+*sequence, env.cfg.Output.ImageFormat, env.cfg.Output.Quality)
		if err != nil {
			return err
		}
		if err := b.SaveSequence(ctx, axis, r); err != nil {
			return err
		}
		fmt.Printf("Saved %d planes along %s to %s\n", len(r.Paths()), *sequence, *out)
		return nil
	}

	r, err := browser.NewFileRenderer(*out, fmt.Sprintf("plane_t%03d_z%03d", *t, *z), env.cfg.Output.ImageFormat, env.cfg.Output.Quality)
	if err != nil {
		return err
	}
	if err := r.Render(plane); err != nil {
		return err
	}
	fmt.Printf("Plane t=%d z=%d: %s\n", *t, *z, volume.Summarize(plane))
	fmt.Printf("Saved to %s\n", r.Paths()[0])
	return nil
}

func runProject(ctx context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	dir, pattern := env.datasetFlags(fs)
	op := fs.String("op", "max", "Reduction along z: max, min, sum, mean")
	out := fs.String("out", filepath.Join(env.cfg.Output.Dir, "projection"), "Directory for rendered images")
	fs.Parse(args)

	_, v, err := env.open(*dir, *pattern)
	if err != nil {
		return err
	}
	proj, err := volume.Reduce(v, 1, volume.ReduceOp(*op))
	if err != nil {
		return err
	}
	b, err := browser.Attach(proj, env.ex, browser.WithAxisNames("t"))
	if err != nil {
		return err
	}
	r, err := browser.NewFileRenderer(*out, *op+"_t", env.cfg.Output.ImageFormat, env.cfg.Output.Quality)
	if err != nil {
		return err
	}

	banner(fmt.Sprintf("%s PROJECTION ALONG Z", *op))
	if err := b.SaveSequence(ctx, 0, r); err != nil {
		return err
	}
	fmt.Printf("Saved %d projections to %s\n", len(r.Paths()), *out)
	return nil
}

func runExport(ctx context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir, pattern := env.datasetFlags(fs)
	filterName := fs.String("filter", "gaussian", "Filter applied before export: none, gaussian, minimum, maximum, threshold, lowpass")
	name := fs.String("name", "volume.zarr", "Array directory below the output directory")
	fs.Parse(args)

	_, v, err := env.open(*dir, *pattern)
	if err != nil {
		return err
	}
	if v, err = env.applyFilter(v, *filterName); err != nil {
		return err
	}

	store, err := persist.NewDirStore(env.cfg.Output.Dir)
	if err != nil {
		return err
	}
	opts := []persist.WriteOption{
		persist.WithLogger(env.logger),
		persist.WithAttributes(persist.Attributes{"source": *dir, "pattern": *pattern, "filter": *filterName}),
	}
	if env.cfg.Output.Gzip > 0 {
		opts = append(opts, persist.WithGzip(env.cfg.Output.Gzip))
	}

	banner("EXPORT")
	meta, err := persist.Write(ctx, env.ex, v, store, *name, env.cfg.Output.Chunks, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %v array (%s) in chunks of %v to %s\n",
		meta.Shape, meta.Dtype, meta.Chunks, filepath.Join(store.Base(), *name))
	return nil
}

func runConfig(_ context.Context, env *runEnv, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	path := fs.String("o", env.configPath, "Where to write the configuration")
	fs.Parse(args)

	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", *path)
	return nil
}

// applyFilter wraps v with the named filter using the configured parameters.
func (e *runEnv) applyFilter(v *volume.Volume, name string) (*volume.Volume, error) {
	var f volume.Filter
	switch name {
	case "none", "":
		return v, nil
	case "gaussian":
		f = filter.Gaussian{Sigma: e.cfg.Filter.Sigma}
	case "minimum":
		f = filter.Minimum{Size: e.cfg.Filter.Size}
	case "maximum":
		f = filter.Maximum{Size: e.cfg.Filter.Size}
	case "threshold":
		f = filter.Threshold{Level: e.cfg.Filter.Threshold}
	case "lowpass":
		f = filter.LowPass{Cutoff: e.cfg.Filter.Cutoff, Shape: v.Shape()}
	default:
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	e.logger.Printf("Applying %s filter with margin %v", name, f.Margin())
	return volume.Apply(v, f)
}
