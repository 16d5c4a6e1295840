// Package agents builds the analysis report from a news agent, a finance agent and an aggregator
// that share one text generator.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"StockCast/internal/domain/models"
	domsvc "StockCast/internal/domain/service"
	"StockCast/pkg/logger"
	"StockCast/pkg/util"

	"golang.org/x/sync/errgroup"
)

// ResultKind tags the payload carried by a Result.
type ResultKind int

const (
	// ResultText is the only variant: plain markdown text.
	ResultText ResultKind = iota + 1
)

// Result is the tagged output of an agent run.
type Result struct {
	Kind ResultKind
	Text string
}

// TextResult wraps s as a text result.
func TextResult(s string) Result { return Result{Kind: ResultText, Text: s} }

// Content returns the text payload or an error when the result carries none.
func (r Result) Content() (string, error) {
	if r.Kind != ResultText {
		return "", errors.New("agent result carries no text content")
	}
	return r.Text, nil
}

// Agent is one step of the pipeline.
type Agent interface {
	Name() string
	Run(ctx context.Context, stockName string) (Result, error)
}

// StatsFunc looks up price statistics for a stock. An error only means the agent runs without them.
type StatsFunc func(ctx context.Context, stockName string) (models.PriceStats, error)

type promptAgent struct {
	name         string
	instructions []string
	gen          domsvc.TextGenerator
	prompt       func(ctx context.Context, stockName string) string
}

func (a *promptAgent) Name() string { return a.name }

func (a *promptAgent) Run(ctx context.Context, stockName string) (Result, error) {
	out, err := a.gen.Generate(ctx, system(a.name, a.instructions), a.prompt(ctx, stockName))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", a.name, err)
	}
	return TextResult(out), nil
}

func system(name string, instructions []string) string {
	var sb strings.Builder
	sb.WriteString("You are the ")
	sb.WriteString(name)
	sb.WriteString(".\n")
	for _, in := range instructions {
		sb.WriteString("- ")
		sb.WriteString(in)
		sb.WriteString("\n")
	}
	return sb.String()
}

// NewNewsAgent summarizes the latest financial news for a company.
func NewNewsAgent(gen domsvc.TextGenerator) Agent {
	return &promptAgent{
		name: "News Agent",
		instructions: []string{
			"Fetch and summarize the latest financial news for the company.",
			"Highlight points affecting stock performance.",
			"Include credible sources.",
		},
		gen: gen,
		prompt: func(_ context.Context, stockName string) string {
			return fmt.Sprintf("Summarize the latest financial news about %s.", stockName)
		},
	}
}

// NewFinanceAgent reports key financial metrics. Computed price statistics are added to the prompt when stats is set.
func NewFinanceAgent(gen domsvc.TextGenerator, stats StatsFunc, l *logger.Logger) Agent {
	if l == nil {
		l = logger.Nop()
	}
	return &promptAgent{
		name: "Finance Agent",
		instructions: []string{
			"Retrieve key financial metrics, including P/E ratio, market cap, dividend yield, beta, and alpha.",
			"Use tables for clarity.",
			"Focus on how these metrics impact stock performance.",
		},
		gen: gen,
		prompt: func(ctx context.Context, stockName string) string {
			p := fmt.Sprintf("Report the key financial metrics of %s.", stockName)
			if stats == nil {
				return p
			}
			st, err := stats(ctx, stockName)
			if err != nil {
				l.Debug("finance agent running without price stats",
					logger.String("stock", stockName),
					logger.Error(err),
				)
				return p
			}
			return p + "\n\n" + formatStats(st)
		},
	}
}

func formatStats(st models.PriceStats) string {
	return fmt.Sprintf(`Recent daily price statistics for %s over %d trading days:
| Metric | Value |
|---|---|
| Last close | %.2f |
| Period return | %.2f%% |
| High | %.2f |
| Low | %.2f |
| Annualized volatility | %.2f%% |`,
		st.Symbol, st.Days, st.LastClose, st.PeriodReturn*100, st.High, st.Low, st.Volatility*100)
}

var aggregatorInstructions = []string{
	"Combine inputs from all agents into a concise summary.",
	"Highlight critical news and key financial metrics.",
	"Provide investment recommendations (long-term and short-term).",
	"Present all comparisons and financial data in markdown table format. Do not use plain text for tables.",
	"If possible, use clear section headers and keep formatting consistent.",
}

// Aggregator runs its member agents concurrently and merges their outputs into one report.
type Aggregator struct {
	gen     domsvc.TextGenerator
	members []Agent
	log     *logger.Logger
}

// NewAggregator creates the aggregator over members.
func NewAggregator(gen domsvc.TextGenerator, l *logger.Logger, members ...Agent) *Aggregator {
	if l == nil {
		l = logger.Nop()
	}
	return &Aggregator{gen: gen, members: members, log: l}
}

func (a *Aggregator) Name() string { return "Aggregator Agent" }

// Run fans out to every member, then asks the generator for the combined report.
func (a *Aggregator) Run(ctx context.Context, stockName string) (Result, error) {
	outputs := make([]string, len(a.members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range a.members {
		g.Go(func() error {
			res, err := m.Run(gctx, stockName)
			if err != nil {
				return err
			}
			text, err := res.Content()
			if err != nil {
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			outputs[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze %s stock.\n", stockName)
	for i, m := range a.members {
		fmt.Fprintf(&sb, "\n## %s\n%s\n", m.Name(), outputs[i])
	}
	out, err := a.gen.Generate(ctx, system(a.Name(), aggregatorInstructions), sb.String())
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", a.Name(), err)
	}
	a.log.Debug("report aggregated", logger.String("stock", stockName), logger.Int("chars", len(out)))
	return TextResult(out), nil
}

// Analyze runs the aggregator and returns the cleaned markdown report.
func Analyze(ctx context.Context, agg Agent, stockName string) (string, error) {
	res, err := agg.Run(ctx, stockName)
	if err != nil {
		return "", err
	}
	text, err := res.Content()
	if err != nil {
		return "", err
	}
	return util.CleanMarkdown(text), nil
}
