package daemon

import (
	"context"
	"image"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/encoder"
	execpkg "github.com/xearthlayer/xearthlayer/executor"
	"github.com/xearthlayer/xearthlayer/orchestrator"
)

// jobOutput is where the leader path's CacheWrite task deposits the final
// encoded bytes, for the daemon to read once Submit returns. Task outputs
// published through the run-context only live for the duration of the job
// (executor.Output is reachable only from a task's own Execute call), so
// the terminal answer is handed back through this plain pointer instead —
// the small tagged TaskOutput union is for inter-task IPC within the job,
// not for surfacing the final result to the caller.
type jobOutput struct {
	bytes []byte
}

// buildJob assembles the four-task DDS-generate job from §4.G step 4:
// DownloadChunks, AssembleImage, EncodeDds, CacheWrite, each publishing to
// the next by name.
func buildJob(
	tile xearthlayer.TileCoord,
	priority xearthlayer.Priority,
	policy xearthlayer.ErrorPolicy,
	orch *orchestrator.Orchestrator,
	enc *encoder.Encoder,
	tileCache cache.Cache,
	downloadTimeout time.Duration,
) (*xearthlayer.Job, *jobOutput) {
	out := &jobOutput{}

	downloadChunks := &xearthlayer.Task{
		Name:     "DownloadChunks",
		Resource: xearthlayer.Network,
		Retry: xearthlayer.RetryPolicy{
			Mode:        xearthlayer.RetryExponential,
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			CapDelay:    10 * time.Second,
		},
		Execute: func(ctx context.Context) xearthlayer.TaskResult {
			opts := orchestrator.Options{Policy: orchestrator.FailurePolicy{Mode: orchestrator.RequireAll}}
			if downloadTimeout > 0 {
				opts.Deadline = downloadTimeout
			}
			img, err := orch.Assemble(ctx, tile, opts)
			if err != nil {
				return xearthlayer.TaskResult{
					Status:    xearthlayer.TaskFailed,
					Err:       err,
					Transient: xearthlayer.KindOf(err).Retryable(),
				}
			}
			return xearthlayer.TaskResult{
				Status: xearthlayer.TaskSuccessWithOutput,
				Output: &xearthlayer.TaskOutput{Image: img},
			}
		},
	}

	assembleImage := &xearthlayer.Task{
		Name:     "AssembleImage",
		Resource: xearthlayer.CPU,
		Execute: func(ctx context.Context) xearthlayer.TaskResult {
			// The chunk fan-out and compositing already happened inside
			// DownloadChunks (the orchestrator fetches and assembles in
			// one call); this task exists as its own named step in the
			// job graph and simply forwards the assembled image onward.
			in, err := execpkg.Output(ctx, "DownloadChunks")
			if err != nil {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: err}
			}
			return xearthlayer.TaskResult{
				Status: xearthlayer.TaskSuccessWithOutput,
				Output: &xearthlayer.TaskOutput{Image: in.Image},
			}
		},
	}

	encodeDds := &xearthlayer.Task{
		Name:     "EncodeDds",
		Resource: xearthlayer.CPU,
		Execute: func(ctx context.Context) xearthlayer.TaskResult {
			in, err := execpkg.Output(ctx, "AssembleImage")
			if err != nil {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: err}
			}
			rgba, ok := in.Image.(*image.RGBA)
			if !ok {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: xearthlayer.ErrMissingInput}
			}
			data, err := enc.Encode(rgba)
			if err != nil {
				return xearthlayer.TaskResult{
					Status: xearthlayer.TaskFailed,
					Err:    xearthlayer.NewError("EncodeDds", xearthlayer.KindCorrupt, err),
				}
			}
			return xearthlayer.TaskResult{
				Status: xearthlayer.TaskSuccessWithOutput,
				Output: &xearthlayer.TaskOutput{DDSData: data},
			}
		},
	}

	cacheWrite := &xearthlayer.Task{
		Name:     "CacheWrite",
		Resource: xearthlayer.DiskIO,
		Execute: func(ctx context.Context) xearthlayer.TaskResult {
			in, err := execpkg.Output(ctx, "EncodeDds")
			if err != nil {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: err}
			}
			if err := tileCache.Set(ctx, tile.CacheKey(), in.DDSData); err != nil {
				return xearthlayer.TaskResult{Status: xearthlayer.TaskFailed, Err: err}
			}
			out.bytes = in.DDSData
			return xearthlayer.TaskResult{Status: xearthlayer.TaskSuccess}
		},
	}

	job := &xearthlayer.Job{
		ID:       xearthlayer.NewJobId(),
		Name:     "dds-generate:" + tile.String(),
		Priority: priority,
		Policy:   policy,
		Tasks:    []*xearthlayer.Task{downloadChunks, assembleImage, encodeDds, cacheWrite},
	}
	return job, out
}
