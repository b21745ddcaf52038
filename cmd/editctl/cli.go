package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nanoedit/internal/domain"
	"nanoedit/internal/imagegen"
	"nanoedit/internal/infra"
	"nanoedit/internal/service"
	"nanoedit/internal/storage"
)

func newCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "editctl",
		Short:        "Run image edits against the configured backend from the command line",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("out", "o", "", "write the edited image here instead of printing JSON")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "overall deadline")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log pipeline progress to stderr")

	editCmd := &cobra.Command{
		Use:   "edit IMAGE",
		Short: "Remove, insert or replace a subject in IMAGE",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}
	editCmd.Flags().StringP("mode", "m", string(domain.ModeReplace), "remove, insert or replace")
	editCmd.Flags().StringP("reference", "r", "", "reference image for insert and replace")
	editCmd.Flags().StringP("target", "t", "", "what to edit, e.g. \"the man on the right\"")
	editCmd.Flags().String("bbox", "", "restrict the edit to x,y,w,h")
	editCmd.Flags().StringP("prompt", "p", "", "extra instruction passed verbatim")

	chainCmd := &cobra.Command{
		Use:   "chain SCENE PERSON",
		Short: "Remove a subject from SCENE, then insert PERSON in its place",
		Args:  cobra.ExactArgs(2),
		RunE:  runChain,
	}
	chainCmd.Flags().StringP("target", "t", "", "what to remove")
	chainCmd.Flags().String("bbox", "", "restrict both steps to x,y,w,h")
	chainCmd.Flags().String("remove-prompt", "", "instruction for the remove step")
	chainCmd.Flags().String("insert-prompt", "", "instruction for the insert step")
	chainCmd.Flags().String("steps-dir", "", "also save every intermediate image into this directory")

	rootCmd.AddCommand(editCmd, chainCmd)
	return rootCmd
}

func buildService(cmd *cobra.Command) (*service.Service, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	var logger *infra.Logger
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		l := infra.NewLogger("development").Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		logger = &l
	}
	return service.New(cfg, logger, nil), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}

func runEdit(cmd *cobra.Command, args []string) error {
	mode, ok := domain.ParseMode(mustString(cmd, "mode"))
	if !ok {
		return fmt.Errorf("unknown mode %q", mustString(cmd, "mode"))
	}
	box, err := parseBox(mustString(cmd, "bbox"))
	if err != nil {
		return err
	}
	base, err := loadImage(args[0])
	if err != nil {
		return err
	}
	req := domain.EditRequest{
		Mode:           mode,
		Base:           base,
		Target:         mustString(cmd, "target"),
		BoundingBox:    box,
		PromptOverride: mustString(cmd, "prompt"),
	}
	if ref := mustString(cmd, "reference"); ref != "" {
		r, err := loadImage(ref)
		if err != nil {
			return err
		}
		req.Reference = &r
	}

	svc, err := buildService(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := svc.Pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	return emit(cmd, svc.Fallback, res)
}

func runChain(cmd *cobra.Command, args []string) error {
	box, err := parseBox(mustString(cmd, "bbox"))
	if err != nil {
		return err
	}
	scene, err := loadImage(args[0])
	if err != nil {
		return err
	}
	person, err := loadImage(args[1])
	if err != nil {
		return err
	}

	svc, err := buildService(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	onStep, err := stepWriter(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := svc.Orchestrator.RunTraced(ctx, imagegen.RemoveInsert(imagegen.ChainInput{
		Scene:        scene,
		Person:       person,
		Target:       mustString(cmd, "target"),
		BoundingBox:  box,
		RemovePrompt: mustString(cmd, "remove-prompt"),
		InsertPrompt: mustString(cmd, "insert-prompt"),
	}), onStep)
	if err != nil {
		return err
	}
	return emit(cmd, svc.Fallback, res)
}

// stepWriter saves each successful chain step as step-N-OPERATION under
// --steps-dir. It returns nil when the flag is unset.
func stepWriter(ctx context.Context, cmd *cobra.Command) (imagegen.StepFunc, error) {
	dir := mustString(cmd, "steps-dir")
	if dir == "" {
		return nil, nil
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	stderr := cmd.ErrOrStderr()
	return func(i int, op domain.Mode, res domain.Result) {
		if !res.OK() {
			return
		}
		path, err := store.WriteAsset(ctx, fmt.Sprintf("step-%d-%s", i+1, op), res.Asset)
		if err != nil {
			fmt.Fprintln(stderr, "warning:", err)
			return
		}
		fmt.Fprintln(stderr, "saved", path)
	}, nil
}

// emit writes the asset to --out or prints a JSON summary. Failures the
// policy propagates become a non-zero exit.
func emit(cmd *cobra.Command, policy *imagegen.FallbackPolicy, res domain.Result) error {
	d := policy.Decide(res)
	stdout := cmd.OutOrStdout()

	var asset domain.InlineAsset
	switch d.Action {
	case imagegen.ActionPropagate:
		summary := map[string]any{"ok": false, "error": d.Code, "status": d.Status}
		if d.Message != "" {
			summary["message"] = d.Message
		}
		if len(d.Need) > 0 {
			summary["need"] = d.Need
		}
		if d.Detail != "" {
			summary["detail"] = d.Detail
		}
		_ = printJSON(stdout, summary)
		return fmt.Errorf("edit failed: %s", d.Code)
	case imagegen.ActionStub:
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", d.Note)
		asset = d.Asset
	default:
		if !res.OK() {
			return printJSON(stdout, map[string]any{"ok": true, "note": imagegen.NoteNoImage, "modelText": res.ModelNote})
		}
		asset = res.Asset
	}

	out := mustString(cmd, "out")
	if out == "" {
		return printJSON(stdout, map[string]any{"ok": true, "result": map[string]string{
			"base64": asset.Data,
			"format": asset.Format(),
			"mime":   asset.MimeType,
		}})
	}
	raw, err := asset.Bytes()
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "wrote %s (%s, %d bytes)\n", out, asset.MimeType, len(raw))
	return nil
}

// loadImage reads a local file as base64; URLs and data URIs pass through.
func loadImage(arg string) (domain.ImageRef, error) {
	ref := domain.ParseImageRef(arg)
	if ref.Kind != domain.RefRawBase64 {
		return ref, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("read image: %w", err)
	}
	return domain.ParseImageRef(base64.StdEncoding.EncodeToString(raw)), nil
}

func parseBox(s string) (*domain.BoundingBox, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return nil, fmt.Errorf("bbox must be x,y,w,h, got %q", s)
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox field %d: %w", i+1, err)
		}
		v[i] = n
	}
	box := &domain.BoundingBox{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if !box.Finite() {
		return nil, fmt.Errorf("bbox must be finite, got %q", s)
	}
	return box, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
