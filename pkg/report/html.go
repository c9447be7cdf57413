package report

import (
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// maxHTMLIssues caps the remaining-issue listing of the pipeline page.
const maxHTMLIssues = 50

const htmlDateLayout = "Jan 2, 2006 3:04 PM"

const baseCSS = `
* { box-sizing: border-box; margin: 0; padding: 0; }
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; background: #f5f5f5; padding: 20px; }
.container { max-width: 1200px; margin: 0 auto; }
h1 { color: #1a1a2e; margin-bottom: 10px; font-size: 2rem; }
h2 { color: #1a1a2e; margin: 30px 0 15px; }
.meta { color: #666; margin-bottom: 30px; }
.card { background: white; padding: 20px; border-radius: 10px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); text-align: center; }
.card h3 { font-size: 2rem; margin-bottom: 5px; }
.card p { color: #666; font-size: 0.9rem; }
.card.critical { border-left: 4px solid #dc3545; }
.card.high { border-left: 4px solid #fd7e14; }
.card.medium { border-left: 4px solid #ffc107; }
.card.low { border-left: 4px solid #17a2b8; }
.card.total { border-left: 4px solid #6c757d; }
.card.before { border-top: 4px solid #dc3545; }
.card.after { border-top: 4px solid #28a745; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); gap: 15px; margin-bottom: 30px; }
.section { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); margin-bottom: 30px; }
.file-group { margin-bottom: 25px; }
.file-name { font-family: 'Monaco', 'Menlo', monospace; background: #e9ecef; padding: 8px 12px; border-radius: 5px; margin-bottom: 10px; font-size: 0.9rem; }
.issue { padding: 12px; margin-bottom: 8px; border-radius: 5px; border-left: 4px solid #6c757d; }
.issue.critical { background: #f8d7da; border-color: #dc3545; }
.issue.high { background: #ffe5d0; border-color: #fd7e14; }
.issue.medium { background: #fff3cd; border-color: #ffc107; }
.issue.low { background: #d1ecf1; border-color: #17a2b8; }
.issue-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 5px; }
.issue-rule { font-weight: bold; font-family: monospace; }
.issue-location { color: #666; font-size: 0.85rem; }
.badge { display: inline-block; padding: 2px 8px; border-radius: 12px; font-size: 0.75rem; font-weight: bold; text-transform: uppercase; background: #6c757d; color: white; }
.badge.critical { background: #dc3545; }
.badge.high { background: #fd7e14; }
.badge.medium { background: #ffc107; color: #333; }
.badge.low { background: #17a2b8; }
.no-issues { text-align: center; padding: 40px; color: #28a745; }
.reduction { background: #28a745; color: white; padding: 10px 20px; border-radius: 20px; font-weight: bold; display: inline-block; margin-bottom: 30px; }
.fix-item { display: flex; justify-content: space-between; padding: 10px 0; border-bottom: 1px solid #eee; }
.fix-item:last-child { border-bottom: none; }
.build-status { padding: 15px 25px; border-radius: 10px; font-weight: bold; margin-bottom: 30px; }
.build-status.success { background: #d4edda; color: #155724; }
.build-status.failed { background: #f8d7da; color: #721c24; }
`

var funcs = template.FuncMap{
	"location": func(issue core.Issue) string {
		if issue.Line == nil {
			return ""
		}
		return fmt.Sprintf("Line %d", *issue.Line)
	},
	"sevclass": func(level severity.Level) string {
		return strings.ToLower(level.String())
	},
}

var scanTemplate = template.Must(template.New("scan").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>OhMyBug Scan Report</title>
<style>{{.CSS}}</style>
</head>
<body>
<div class="container">
<h1>OhMyBug Scan Report</h1>
<p class="meta"><strong>Project:</strong> {{.ProjectPath}}<br><strong>Date:</strong> {{.Date}}</p>
<div class="grid">
<div class="card critical"><h3>{{.Summary.Critical}}</h3><p>Critical</p></div>
<div class="card high"><h3>{{.Summary.High}}</h3><p>High</p></div>
<div class="card medium"><h3>{{.Summary.Medium}}</h3><p>Medium</p></div>
<div class="card low"><h3>{{.Summary.Low}}</h3><p>Low</p></div>
<div class="card total"><h3>{{.Summary.Total}}</h3><p>Total Issues</p></div>
</div>
{{if .Build}}<div class="build-status {{.Build}}">Build {{if eq .Build "success"}}Succeeded{{else}}Failed{{end}}</div>{{end}}
<div class="section">
<h2>Issues</h2>
{{if not .Files}}<div class="no-issues"><h3>No issues found!</h3><p>Your code looks great.</p></div>{{end}}
{{range .Files}}<div class="file-group">
<div class="file-name">{{.Path}}</div>
{{range .Issues}}<div class="issue {{sevclass .Severity}}">
<div class="issue-header"><span class="issue-rule">{{.Rule}}</span><span class="badge {{sevclass .Severity}}">{{.Severity}}</span></div>
<div class="issue-location">{{location .}}</div>
<div class="issue-message">{{.Message}}</div>
</div>
{{end}}</div>
{{end}}</div>
</div>
</body>
</html>
`))

var pipelineTemplate = template.Must(template.New("pipeline").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>OhMyBug Pipeline Report</title>
<style>{{.CSS}}</style>
</head>
<body>
<div class="container">
<h1>OhMyBug Pipeline Report</h1>
<p class="meta"><strong>Project:</strong> {{.ProjectPath}}<br><strong>Duration:</strong> {{.Duration}}</p>
<div class="grid">
<div class="card before"><h3>{{.Before.Total}}</h3><p>Issues Before</p></div>
<div class="card after"><h3>{{.After.Total}}</h3><p>Issues After</p></div>
</div>
<div style="text-align: center;"><span class="reduction">{{.Reduction}} Reduction</span></div>
{{if .Build}}<div class="build-status {{.Build}}">Build {{if eq .Build "success"}}Succeeded{{else}}Failed{{end}}</div>{{end}}
{{if .Fixes}}<h2>Fix Results</h2>
<div class="section">
{{range .Fixes}}<div class="fix-item"><span><strong>{{.Tool}}</strong></span><span>{{.FixedIssueCount}} issues fixed in {{.FixedFiles}} files</span></div>
{{end}}</div>
{{end}}
{{if .Issues}}<h2>Remaining Issues ({{.IssueCount}})</h2>
<div class="section">
{{range .Issues}}<div class="issue {{sevclass .Severity}}">
<span class="badge {{sevclass .Severity}}">{{.Severity}}</span>
<strong>{{.Rule}}</strong> {{location .}}<br>
{{.Message}}
</div>
{{end}}{{if .Hidden}}<p style="text-align:center;color:#666;">...and {{.Hidden}} more issues</p>{{end}}
</div>
{{end}}
</div>
</body>
</html>
`))

type htmlFile struct {
	Path   string
	Issues []core.Issue
}

type scanPage struct {
	CSS         template.CSS
	ProjectPath string
	Date        string
	Summary     severity.Summary
	Build       string
	Files       []htmlFile
}

type pipelinePage struct {
	CSS         template.CSS
	ProjectPath string
	Duration    string
	Before      severity.Summary
	After       severity.Summary
	Reduction   string
	Build       string
	Fixes       []core.FixResult
	Issues      []core.Issue
	IssueCount  int
	Hidden      int
}

func scanHTML(r *core.ScanReport) (string, error) {
	page := scanPage{
		CSS:         template.CSS(baseCSS),
		ProjectPath: r.ProjectPath,
		Date:        r.CompletedAt.Format(htmlDateLayout),
		Summary:     r.Summary(),
		Build:       buildClass(r.BuildSucceeded),
	}

	paths, groups := groupByFile(r.Issues)
	for _, path := range paths {
		issues := slices.Clone(groups[path])
		slices.SortStableFunc(issues, func(a, b core.Issue) int {
			return a.LineOrZero() - b.LineOrZero()
		})
		page.Files = append(page.Files, htmlFile{
			Path:   core.RelativePath(r.ProjectPath, path),
			Issues: issues,
		})
	}
	return execute(scanTemplate, page)
}

func pipelineHTML(r *core.PipelineReport) (string, error) {
	remaining := remainingIssues(r)
	page := pipelinePage{
		CSS:         template.CSS(baseCSS),
		ProjectPath: r.ProjectPath,
		Duration:    fmt.Sprintf("%.1fs", r.Duration().Seconds()),
		Before:      r.BeforeIssues,
		After:       r.AfterIssues,
		Reduction:   fmt.Sprintf("%.0f%%", r.ReductionPercentage()),
		Build:       buildClass(r.BuildSucceeded),
		Fixes:       r.FixResults,
		IssueCount:  len(remaining),
	}
	if len(remaining) > maxHTMLIssues {
		page.Hidden = len(remaining) - maxHTMLIssues
		remaining = remaining[:maxHTMLIssues]
	}
	page.Issues = remaining
	return execute(pipelineTemplate, page)
}

func buildClass(ok *bool) string {
	switch {
	case ok == nil:
		return ""
	case *ok:
		return "success"
	default:
		return "failed"
	}
}

func execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
