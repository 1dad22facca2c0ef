package stages

import (
	"context"
	"fmt"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// AnalysisKind selects one of the post-finish analyses.
type AnalysisKind string

const (
	AnalysisRedTeam      AnalysisKind = "red_team"
	AnalysisEthics       AnalysisKind = "ethics"
	AnalysisSuccessScore AnalysisKind = "success_score"
)

var AnalysisKinds = []AnalysisKind{AnalysisRedTeam, AnalysisEthics, AnalysisSuccessScore}

func ParseAnalysisKind(s string) (AnalysisKind, error) {
	for _, k := range AnalysisKinds {
		if string(k) == s {
			return k, nil
		}
	}
	switch s {
	case "redteam", "red-team":
		return AnalysisRedTeam, nil
	case "ethics_audit", "ethics-audit":
		return AnalysisEthics, nil
	case "score", "success":
		return AnalysisSuccessScore, nil
	}
	return "", fmt.Errorf("unknown analysis %q", s)
}

func (r *Runner) RedTeam(ctx context.Context, d Dossier) (*RedTeamReport, usage.Usage, error) {
	var res RedTeamReport
	u, err := r.generate(ctx, StageRedTeam, promptRedTeam, llm.TierQuality, nil, d.Render(), redTeamSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) EthicsAudit(ctx context.Context, d Dossier) (*EthicsAudit, usage.Usage, error) {
	var res EthicsAudit
	u, err := r.generate(ctx, StageEthicsAudit, promptEthicsAudit, llm.TierQuality, nil, d.Render(), ethicsAuditSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) SuccessScore(ctx context.Context, d Dossier) (*SuccessScore, usage.Usage, error) {
	var res SuccessScore
	u, err := r.generate(ctx, StageSuccessScore, promptSuccessScore, llm.TierQuality, temperaturePrecise, d.Render(), successScoreSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}
