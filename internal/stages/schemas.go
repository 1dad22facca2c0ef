package stages

import "github.com/rahul/foundry/internal/llm"

var (
	researchSchema = llm.Object(map[string]any{
		"summary":    llm.String("research summary"),
		"marketSize": llm.String("estimated market size with unit and year"),
		"trends":     llm.Strings("current trends"),
		"painPoints": llm.Strings("pain points of affected people"),
		"competitors": llm.Array(llm.Object(map[string]any{
			"name":     llm.String("competitor name"),
			"offering": llm.String("what they offer"),
			"weakness": llm.String("their main weakness"),
		}, "name")),
	}, "summary", "painPoints")

	techScoutSchema = llm.Object(map[string]any{
		"summary": llm.String("technology landscape summary"),
		"technologies": llm.Array(llm.Object(map[string]any{
			"name":        llm.String("technology name"),
			"maturity":    llm.Enum("maturity", string(MaturityEmerging), string(MaturityGrowing), string(MaturityMature)),
			"application": llm.String("how it applies to the challenge"),
		}, "name", "maturity")),
	}, "summary", "technologies")

	challengeSchema = llm.Object(map[string]any{
		"title":     llm.String("short title"),
		"statement": llm.String("problem statement"),
		"rationale": llm.String("why the solution fits"),
	}, "title", "statement")

	marketFitSchema = llm.Object(map[string]any{
		"assessment":          llm.String("market fit assessment"),
		"targetMarket":        llm.String("target market"),
		"suggestedChallenges": llm.ArrayN(challengeSchema, 1, 5),
	}, "assessment", "suggestedChallenges")

	framingSchema = llm.Object(map[string]any{
		"frames": llm.ArrayN(llm.Object(map[string]any{
			"title":       llm.String("frame title"),
			"coreProblem": llm.String("one sentence core problem"),
			"rationale":   llm.String("why this framing matters"),
		}, "title", "coreProblem"), FrameCount, FrameCount),
	}, "frames")

	personaSchema = llm.Object(map[string]any{
		"name":         llm.String("persona name"),
		"age":          llm.Integer("age in years"),
		"occupation":   llm.String("occupation"),
		"bio":          llm.String("short biography"),
		"goals":        llm.Strings("goals"),
		"frustrations": llm.Strings("frustrations"),
		"avatarPrompt": llm.String("portrait illustration prompt"),
	}, "name", "bio", "avatarPrompt")

	empathySchema = llm.Object(map[string]any{
		"says":   llm.Strings("things the persona says"),
		"thinks": llm.Strings("things the persona thinks"),
		"does":   llm.Strings("things the persona does"),
		"feels":  llm.Strings("things the persona feels"),
		"pains":  llm.Strings("pains"),
		"gains":  llm.Strings("gains"),
	}, "says", "thinks", "does", "feels")

	problemStatementSchema = llm.Object(map[string]any{
		"statement":  llm.String("problem statement"),
		"howMightWe": llm.String("How might we question"),
		"insights":   llm.Strings("key insights"),
	}, "statement", "howMightWe")

	ideaSchema = llm.Object(map[string]any{
		"title":       llm.String("idea title"),
		"description": llm.String("idea description"),
		"mechanism":   llm.String("how it works"),
	}, "title", "description")

	ideationSchema = llm.Object(map[string]any{
		"ideas": llm.ArrayN(ideaSchema, 1, 8),
	}, "ideas")

	critiqueSchema = llm.Object(map[string]any{
		"critiques": llm.Array(llm.Object(map[string]any{
			"ideaTitle":  llm.String("idea title as given"),
			"strengths":  llm.Strings("strengths"),
			"weaknesses": llm.Strings("weaknesses"),
			"verdict":    llm.String("one line verdict"),
		}, "ideaTitle", "verdict")),
	}, "critiques")

	scoringSchema = llm.Object(map[string]any{
		"scores": llm.ArrayN(llm.Object(map[string]any{
			"ideaTitle":    llm.String("idea title as given"),
			"desirability": llm.Range("desirability", 1, 10),
			"feasibility":  llm.Range("feasibility", 1, 10),
			"viability":    llm.Range("viability", 1, 10),
			"rationale":    llm.String("scoring rationale"),
		}, "ideaTitle", "desirability", "feasibility", "viability"), 1, 8),
	}, "scores")

	solutionSchema = llm.Object(map[string]any{
		"title":       llm.String("solution title"),
		"summary":     llm.String("solution summary"),
		"keyFeatures": llm.Strings("key features"),
	}, "title", "summary")

	brandNameSchema = llm.Object(map[string]any{
		"names": llm.ArrayN(llm.Object(map[string]any{
			"name":      llm.String("brand name"),
			"rationale": llm.String("why it fits"),
		}, "name"), 1, 8),
	}, "names")

	brandIdentitySchema = llm.Object(map[string]any{
		"tagline":      llm.String("tagline"),
		"voice":        llm.String("brand voice"),
		"bannerPrompt": llm.String("banner illustration prompt"),
	}, "tagline", "bannerPrompt")

	refinementSchema = llm.Object(map[string]any{
		"critique":   llm.String("critique of the current solution"),
		"objections": llm.Strings("strongest objections"),
		"revised":    solutionSchema,
	}, "critique", "revised")

	valuePropositionSchema = llm.Object(map[string]any{
		"customerJobs":  llm.Strings("customer jobs"),
		"pains":         llm.Strings("pains"),
		"gains":         llm.Strings("gains"),
		"products":      llm.Strings("products and services"),
		"painRelievers": llm.Strings("pain relievers"),
		"gainCreators":  llm.Strings("gain creators"),
	}, "customerJobs", "painRelievers", "gainCreators")

	leanCanvasSchema = llm.Object(map[string]any{
		"problem":                llm.Strings("top problems"),
		"customerSegments":       llm.Strings("customer segments"),
		"uniqueValueProposition": llm.String("unique value proposition"),
		"solution":               llm.Strings("solution"),
		"channels":               llm.Strings("channels"),
		"revenueStreams":         llm.Strings("revenue streams"),
		"costStructure":          llm.Strings("cost structure"),
		"keyMetrics":             llm.Strings("key metrics"),
		"unfairAdvantage":        llm.String("unfair advantage"),
	}, "problem", "uniqueValueProposition", "revenueStreams")

	storyboardSchema = llm.Object(map[string]any{
		"panels": llm.ArrayN(llm.Object(map[string]any{
			"caption":     llm.String("panel caption"),
			"imagePrompt": llm.String("panel illustration prompt"),
		}, "caption", "imagePrompt"), 1, 8),
	}, "panels")

	financialModelSchema = llm.Object(map[string]any{
		"assumptions": llm.Strings("assumptions"),
		"scenarios": llm.ArrayN(llm.Object(map[string]any{
			"type": llm.Enum("scenario", string(ScenarioConservative), string(ScenarioBase), string(ScenarioOptimistic)),
			"projections": llm.Array(llm.Object(map[string]any{
				"year":    llm.Integer("year number starting at 1"),
				"revenue": llm.Number("revenue in USD"),
				"costs":   llm.Number("costs in USD"),
				"profit":  llm.Number("profit in USD"),
			}, "year", "revenue", "costs")),
		}, "type", "projections"), 1, 3),
		"breakEvenMonth": llm.Integer("month in which the venture breaks even"),
	}, "scenarios")

	strategySchema = llm.Object(map[string]any{
		"vision":     llm.String("vision"),
		"objectives": llm.Strings("objectives"),
		"moat":       llm.String("defensible moat"),
	}, "vision", "objectives")

	riskSchema = llm.Object(map[string]any{
		"risks": llm.Array(llm.Object(map[string]any{
			"category": llm.Enum("risk category", string(RiskMarket), string(RiskTechnical),
				string(RiskFinancial), string(RiskRegulatory), string(RiskOperational)),
			"description": llm.String("risk description"),
			"likelihood":  levelSchema("likelihood"),
			"mitigation":  llm.String("mitigation"),
		}, "category", "description", "likelihood")),
	}, "risks")

	blueprintSchema = llm.Object(map[string]any{
		"phases": llm.Array(llm.Object(map[string]any{
			"name":       llm.String("phase name"),
			"duration":   llm.String("duration"),
			"milestones": llm.Strings("milestones"),
		}, "name")),
	}, "phases")

	goToMarketSchema = llm.Object(map[string]any{
		"segments":     llm.Strings("target segments"),
		"channels":     llm.Strings("channels"),
		"launchPlan":   llm.Strings("launch plan steps"),
		"pricingModel": llm.String("pricing model"),
	}, "segments", "channels")

	pitchDeckSchema = llm.Object(map[string]any{
		"slides": llm.ArrayN(llm.Object(map[string]any{
			"title":       llm.String("slide title"),
			"bullets":     llm.Strings("slide bullets"),
			"imagePrompt": llm.String("slide illustration prompt"),
		}, "title", "bullets"), 1, 14),
	}, "slides")

	investmentMemoSchema = llm.Object(map[string]any{
		"thesis":         llm.String("investment thesis"),
		"opportunity":    llm.String("opportunity"),
		"risks":          llm.Strings("key risks"),
		"ask":            llm.String("the ask"),
		"recommendation": llm.String("recommendation"),
	}, "thesis", "recommendation")

	redTeamSchema = llm.Object(map[string]any{
		"attacks": llm.Array(llm.Object(map[string]any{
			"vector":         llm.String("attack vector"),
			"severity":       levelSchema("severity"),
			"countermeasure": llm.String("countermeasure"),
		}, "vector", "severity")),
	}, "attacks")

	ethicsAuditSchema = llm.Object(map[string]any{
		"rating": levelSchema("overall ethical risk"),
		"concerns": llm.Array(llm.Object(map[string]any{
			"area":           llm.String("area"),
			"issue":          llm.String("issue"),
			"recommendation": llm.String("recommendation"),
		}, "area", "issue")),
	}, "rating", "concerns")

	successScoreSchema = llm.Object(map[string]any{
		"score":      llm.Range("probability of success in percent", 0, 100),
		"drivers":    llm.Strings("success drivers"),
		"detractors": llm.Strings("detractors"),
		"summary":    llm.String("summary"),
	}, "score", "summary")

	gapSchema = llm.Object(map[string]any{
		"queries": llm.ArrayN(llm.String("web search query"), 0, MaxFollowUps),
	}, "queries")
)

func levelSchema(desc string) llm.Schema {
	return llm.Enum(desc, string(LevelLow), string(LevelMedium), string(LevelHigh))
}
