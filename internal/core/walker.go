// Package core provides the content tree walker.
//
// INVARIANTS:
// - A matching component is visited before its own fields are descended
// - Every component reachable through lists, array element objects,
//   component fields or rich-text blocks is considered exactly once per path
// - A failing visit is logged and counted; it never stops the walk
// - Siblings may be visited concurrently; Walk returns once all are settled
package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/contentops/storymig/internal/content"
)

// DefaultWalkConcurrency bounds sibling fan-out per tree level.
const DefaultWalkConcurrency = 4

// Walker applies a transform to every matching node of a content tree.
type Walker struct {
	logger      zerolog.Logger
	concurrency int
}

// WalkResult counts the nodes a walk visited.
type WalkResult struct {
	Visited int64
	Failed  int64
}

type walkCounters struct {
	visited atomic.Int64
	failed  atomic.Int64
}

// NewWalker creates a walker. concurrency <= 0 falls back to
// DefaultWalkConcurrency; 1 gives a sequential depth-first walk.
func NewWalker(logger zerolog.Logger, concurrency int) *Walker {
	if concurrency <= 0 {
		concurrency = DefaultWalkConcurrency
	}
	return &Walker{logger: logger, concurrency: concurrency}
}

// Walk visits every component named target under root. The only error it
// returns is the context's.
func (w *Walker) Walk(ctx context.Context, root content.Node, target string, visit content.TransformFunc) (WalkResult, error) {
	var c walkCounters
	err := w.walk(ctx, root, target, visit, &c)
	return WalkResult{Visited: c.visited.Load(), Failed: c.failed.Load()}, err
}

func (w *Walker) walk(ctx context.Context, n content.Node, target string, visit content.TransformFunc, c *walkCounters) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch t := n.(type) {
	case *content.Component:
		if t.Name == target {
			c.visited.Add(1)
			if err := w.visit(ctx, t, visit); err != nil {
				c.failed.Add(1)
				w.logger.Error().Err(err).Str("component", target).Msg("transform failed on node")
			}
		}
		children := make([]content.Node, 0, len(t.Fields))
		for _, k := range t.Keys() {
			children = append(children, t.Fields[k])
		}
		return w.fanOut(ctx, children, target, visit, c)
	case *content.List:
		return w.fanOut(ctx, t.Items, target, visit, c)
	case *content.Object:
		children := make([]content.Node, 0, len(t.Fields))
		for _, k := range t.Keys() {
			children = append(children, t.Fields[k])
		}
		return w.fanOut(ctx, children, target, visit, c)
	case *content.RichText:
		bodies := make([]content.Node, len(t.Blocks))
		for i, b := range t.Blocks {
			bodies[i] = b.Body
		}
		return w.fanOut(ctx, bodies, target, visit, c)
	default:
		return nil
	}
}

func (w *Walker) fanOut(ctx context.Context, nodes []content.Node, target string, visit content.TransformFunc, c *walkCounters) error {
	if len(nodes) == 0 {
		return nil
	}
	if w.concurrency == 1 || len(nodes) == 1 {
		for _, n := range nodes {
			if err := w.walk(ctx, n, target, visit, c); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, n := range nodes {
		g.Go(func() error {
			return w.walk(gctx, n, target, visit, c)
		})
	}
	return g.Wait()
}

// visit runs the transform, turning a panic into an error.
func (w *Walker) visit(ctx context.Context, node *content.Component, fn content.TransformFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return fn(ctx, node)
}
