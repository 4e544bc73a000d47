package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/document"
	"github.com/spigell/jd-evaluator/internal/evaluation"
	"github.com/spigell/jd-evaluator/internal/export"
	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/session"
	"github.com/spigell/jd-evaluator/internal/utils"
)

const (
	PromptEvaluate = "Evaluate a job description"
	PromptCompare  = "Compare scope with earlier JDs"
	PromptHistory  = "Show session history"
	PromptExport   = "Export session to Excel"
	PromptExit     = "Exit"
)

var errExit = errors.New("exit requested")

var sessionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptEvaluate, PromptCompare, PromptHistory, PromptExport, PromptExit},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start an interactive evaluation session",
	Run: func(cmd *cobra.Command, _ []string) {
		runSession(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

// recorder keeps what the session produced for export.
type recorder struct {
	evaluations []export.EvaluationRow
	comparisons []export.ComparisonRow
}

func (r *recorder) evaluation(result *evaluation.Result) {
	r.evaluations = append(r.evaluations, export.EvaluationRow{
		Position:  result.Submission.Position,
		JDChars:   utils.Length(result.Submission.Content),
		Truncated: result.Submission.Truncated,
		Result:    result.Text,
	})
}

func (r *recorder) comparison(position string, comparison *compare.Comparison) {
	if comparison == nil || comparison.Skipped {
		return
	}

	r.comparisons = append(r.comparisons, export.ComparisonRow{
		Position: position,
		Compared: comparison.Compared,
		Result:   comparison.Text,
	})
}

func (r *recorder) report(sess *session.Session) export.Report {
	return export.Report{
		SessionID:   sess.ID,
		CreatedAt:   sess.CreatedAt,
		Evaluations: r.evaluations,
		Comparisons: r.comparisons,
	}
}

type interactive struct {
	service     *evaluation.Service
	session     *session.Session
	autoCompare bool
	recorder    *recorder
	out         io.Writer
	warn        io.Writer
	logger      *zap.Logger
}

func runSession(cmd *cobra.Command) {
	ctx := context.Background()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, service := startup(ctx, log)

	in := &interactive{
		service:     service,
		session:     session.New(),
		autoCompare: config.AutoCompare,
		recorder:    &recorder{},
		out:         cmd.OutOrStdout(),
		warn:        cmd.ErrOrStderr(),
		logger:      log,
	}

	log.Info("session started", zap.String(logger.FieldSession, in.session.ID))

	for {
		_, action, err := sessionPrompt.Run()
		if err != nil {
			log.Info("exiting", zap.Error(err))
			return
		}

		if err := in.handleAction(ctx, action); err != nil {
			if errors.Is(err, errExit) || errors.Is(err, promptui.ErrInterrupt) {
				log.Info("exiting", zap.Int("evaluated", in.session.History.Len()))
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

// handleAction runs one menu action. Failures of evaluation or comparison
// are reported and keep the session alive; prompt failures end it.
func (in *interactive) handleAction(ctx context.Context, action string) error {
	switch action {
	case PromptEvaluate:
		return in.evaluate(ctx)
	case PromptCompare:
		in.compare(ctx)
		return nil
	case PromptHistory:
		in.showHistory()
		return nil
	case PromptExport:
		return in.export()
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (in *interactive) evaluate(ctx context.Context) error {
	positionPrompt := promptui.Prompt{
		Label:    "Position name",
		Validate: notBlank("position name is required"),
	}
	position, err := positionPrompt.Run()
	if err != nil {
		return err
	}

	filePrompt := promptui.Prompt{
		Label: "JD file (.docx, .txt, .pdf)",
		Validate: func(s string) error {
			_, err := document.DetectFormat(s)
			return err
		},
	}
	path, err := filePrompt.Run()
	if err != nil {
		return err
	}

	text, err := document.ReadFile(strings.TrimSpace(path))
	if err != nil {
		in.report("reading the job description failed", err)
		return nil
	}

	if !in.autoCompare {
		result, err := in.service.Evaluate(ctx, in.session, position, text)
		if err != nil {
			in.report("evaluation failed", err)
			return nil
		}

		printEvaluation(in.out, in.warn, result)
		in.recorder.evaluation(result)
		return nil
	}

	outcome, err := in.service.EvaluateAndCompare(ctx, in.session, position, text)
	if err != nil {
		in.report("evaluation failed", err)
		return nil
	}

	printEvaluation(in.out, in.warn, outcome.Result)
	in.recorder.evaluation(outcome.Result)

	if outcome.CompareErr != nil {
		in.report("scope comparison failed", outcome.CompareErr)
		return nil
	}
	in.showComparison(outcome.Comparison, false)

	return nil
}

// compare runs a scope comparison on request.
func (in *interactive) compare(ctx context.Context) {
	comparison, err := in.service.Compare(ctx, in.session)
	if err != nil {
		in.report("scope comparison failed", err)
		return
	}

	in.showComparison(comparison, true)
}

// showComparison prints and records a comparison. verbose reports a skipped one.
func (in *interactive) showComparison(comparison *compare.Comparison, verbose bool) {
	if comparison.Skipped {
		if verbose {
			fmt.Fprintln(in.out, "Nothing to compare yet: evaluate at least two job descriptions first.")
		}
		return
	}

	position := ""
	if entries := in.session.History.All(); len(entries) > 0 {
		position = entries[len(entries)-1].Position
	}

	printComparison(in.out, comparison)
	in.recorder.comparison(position, comparison)
}

func (in *interactive) showHistory() {
	entries := in.session.History.All()
	if len(entries) == 0 {
		fmt.Fprintln(in.out, "No job descriptions evaluated yet.")
		return
	}

	for i, e := range entries {
		fmt.Fprintf(in.out, "%d. %s (%d characters)\n", i+1, e.Position, utils.Length(e.Content))
	}
}

func (in *interactive) export() error {
	pathPrompt := promptui.Prompt{
		Label:    "Output file",
		Default:  fmt.Sprintf("jd-session-%s.xlsx", shortID(in.session.ID)),
		Validate: notBlank("output file is required"),
	}
	path, err := pathPrompt.Run()
	if err != nil {
		return err
	}

	written, err := export.Write(path, in.recorder.report(in.session))
	if err != nil {
		in.report("export failed", err)
		return nil
	}

	in.logger.Info("session exported", zap.String("filename", written))
	return nil
}

func (in *interactive) report(step string, err error) {
	message, hint := describeError(err)

	fields := []zap.Field{zap.String(logger.FieldSession, in.session.ID), zap.Error(err)}
	if hint != "" {
		fields = append(fields, zap.String("hint", hint))
	}
	in.logger.Error(step, fields...)

	fmt.Fprintf(in.warn, "%s: %s\n", step, message)
	if hint != "" {
		fmt.Fprintf(in.warn, "hint: %s\n", hint)
	}
}

func notBlank(message string) promptui.ValidateFunc {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(message)
		}
		return nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
