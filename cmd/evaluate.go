package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/document"
	"github.com/spigell/jd-evaluator/internal/evaluation"
	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/session"
	"github.com/spigell/jd-evaluator/internal/utils"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate POSITION=FILE [POSITION=FILE...]",
	Short: "Evaluate one or more job descriptions in a single session",
	Long: `Evaluate job description documents (.docx, .txt, .pdf) in the given order.
All of them share one session, so every JD after the first is also compared
with the earlier ones when auto-compare is enabled.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		evaluate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

// job is one POSITION=FILE argument.
type job struct {
	Position string
	Path     string
}

// parseJob splits at the last "=", so position names may contain "=" while
// file paths may not.
func parseJob(arg string) (job, error) {
	i := strings.LastIndex(arg, "=")
	if i < 0 {
		return job{}, fmt.Errorf("invalid argument %q: expected POSITION=FILE", arg)
	}

	position := strings.TrimSpace(arg[:i])
	path := strings.TrimSpace(arg[i+1:])

	if position == "" || path == "" {
		return job{}, fmt.Errorf("invalid argument %q: expected POSITION=FILE", arg)
	}

	return job{Position: position, Path: path}, nil
}

func evaluate(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	jobs := make([]job, 0, len(args))
	for _, arg := range args {
		j, err := parseJob(arg)
		if err != nil {
			log.Fatal("parsing arguments", zap.Error(err))
		}
		jobs = append(jobs, j)
	}

	config, service := startup(ctx, log)
	sess := session.New()
	out := cmd.OutOrStdout()

	for _, j := range jobs {
		jobLog := logger.WithFields(log, logger.SessionFields(sess.ID, j.Position)...)

		text, err := document.ReadFile(j.Path)
		if err != nil {
			jobLog.Fatal("reading job description", zap.String("file", j.Path), zap.Error(err))
		}

		if !config.AutoCompare {
			result, err := service.Evaluate(ctx, sess, j.Position, text)
			if err != nil {
				message, hint := describeError(err)
				jobLog.Fatal(message, zap.Error(err), zap.String("hint", hint))
			}
			printEvaluation(out, cmd.ErrOrStderr(), result)
			continue
		}

		outcome, err := service.EvaluateAndCompare(ctx, sess, j.Position, text)
		if err != nil {
			message, hint := describeError(err)
			jobLog.Fatal(message, zap.Error(err), zap.String("hint", hint))
		}

		printEvaluation(out, cmd.ErrOrStderr(), outcome.Result)

		if outcome.CompareErr != nil {
			message, hint := describeError(outcome.CompareErr)
			jobLog.Error("scope comparison failed: "+message, zap.Error(outcome.CompareErr), zap.String("hint", hint))
			continue
		}
		printComparison(out, outcome.Comparison)
	}
}

func printEvaluation(out, warn io.Writer, result *evaluation.Result) {
	sub := result.Submission
	if sub.Truncated {
		fmt.Fprintf(warn, "warning: the job description for %q was truncated from %d characters to %d\n",
			sub.Position, sub.OriginalChars, utils.Length(sub.Content))
	}
	if result.ReferencesTruncated {
		fmt.Fprintln(warn, "warning: the reference context was truncated")
	}

	fmt.Fprintf(out, "## Evaluation: %s\n\n%s\n\n", sub.Position, strings.TrimSpace(result.Text))
}

func printComparison(out io.Writer, comparison *compare.Comparison) {
	if comparison == nil || comparison.Skipped {
		return
	}

	fmt.Fprintf(out, "## Scope comparison (%d earlier JDs)\n\n%s\n\n", comparison.Compared, strings.TrimSpace(comparison.Text))
}
