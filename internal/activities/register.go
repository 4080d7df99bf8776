package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ResolveInputActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.SummarizeActivity)
	w.RegisterActivity(a.InsightsActivity)
	w.RegisterActivity(a.StorePaperActivity)
	w.RegisterActivity(a.EnrichActivity)
	w.RegisterActivity(a.WriteArtifactActivity)
}
