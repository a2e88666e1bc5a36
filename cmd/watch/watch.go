/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch provides the watch command for ripple.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/ripple/compiler"
	"bennypowers.dev/ripple/internal/output"
	"bennypowers.dev/ripple/internal/project"
	"bennypowers.dev/ripple/internal/watch"
)

// Cmd is the watch command. It builds the project, then rebuilds the
// files each change affects until interrupted.
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Build the project and rebuild affected files on change",
	Long: `Watch builds the project once, then watches the source directory and every
file the build depends on. Changes arriving while a build runs are folded into
the next build, which re-emits only the files depending on changed symbols.`,
	Example: `  # Watch the project in the current directory
  ripple watch

  # Expose Prometheus metrics while watching
  ripple watch --metrics-addr localhost:9464`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	Cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before changes are compiled")
	Cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	project.AddConfigFlags(Cmd.Flags())
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if err := output.ValidateFormat(format); err != nil {
		return err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("error reading debounce flag: %w", err)
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("error reading metrics-addr flag: %w", err)
	}
	if err := project.BindConfigFlags(viper.GetViper(), cmd.Flags()); err != nil {
		return err
	}

	p, err := project.Open(viper.GetViper(), project.Options{Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.Compiler.Compile(ctx, nil)
	if err != nil {
		return err
	}
	if err := output.Result(p.FS, cmd.OutOrStdout(), res, format); err != nil {
		return err
	}

	watcher, err := watch.New(p.WatchRoots(), debounce, p.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	watcher.SetFiles(res.WatchFiles)

	queue := compiler.NewQueue(p.Compiler, func(res *compiler.Result, err error) {
		if err != nil {
			p.Logger.Error("build failed", "error", err)
			return
		}
		watcher.SetFiles(res.WatchFiles)
		if err := output.Result(p.FS, cmd.OutOrStdout(), res, format); err != nil {
			p.Logger.Error("writing result", "error", err)
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	changes := make(chan []string)
	g.Go(func() error {
		return watcher.Run(ctx, changes)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case batch := <-changes:
				p.Logger.Debug("changed", "files", batch)
				queue.Submit(batch...)
			}
		}
	})
	g.Go(func() error {
		return queue.Run(ctx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, p, metricsAddr)
		})
	}

	p.Logger.Info("watching", "roots", p.WatchRoots())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, p *project.Project, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           promhttp.HandlerFor(p.Metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	p.Logger.Info("serving metrics", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
