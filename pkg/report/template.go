package report

// reportTemplateHTML is the single-document report layout. Record data
// is embedded inline both as rendered rows and as JSON for client-side
// consumers; nothing is fetched at view time.
const reportTemplateHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.ProjectName}} - Test Execution Report</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; margin: 0; background: #f8fafc; color: #0f172a; }
        header { background: #fff; border-bottom: 1px solid #e2e8f0; padding: 16px 24px; display: flex; justify-content: space-between; align-items: center; }
        header h1 { margin: 0; font-size: 20px; }
        header .meta { color: #64748b; font-size: 13px; }
        .badge { border-radius: 999px; padding: 4px 12px; font-size: 13px; font-weight: 600; }
        .badge.good { background: #dcfce7; color: #166534; }
        .badge.warn { background: #fef9c3; color: #854d0e; }
        .badge.bad { background: #fee2e2; color: #991b1b; }
        main { max-width: 1100px; margin: 0 auto; padding: 24px; }
        .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 16px; margin-bottom: 24px; }
        .card { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 16px; }
        .card p { margin: 0; color: #64748b; font-size: 13px; }
        .card .value { font-size: 28px; font-weight: 700; margin-top: 4px; color: #0f172a; }
        .card.passed .value { color: #16a34a; }
        .card.failed .value { color: #dc2626; }
        .card.skipped .value { color: #ca8a04; }
        .statusbar { display: flex; height: 10px; border-radius: 999px; overflow: hidden; background: #e2e8f0; margin-bottom: 24px; }
        .statusbar .seg-passed { background: #22c55e; }
        .statusbar .seg-failed { background: #ef4444; }
        .statusbar .seg-skipped { background: #eab308; }
        .statusbar .seg-unknown { background: #94a3b8; }
        .tabs { display: flex; gap: 8px; margin-bottom: 16px; }
        .tabs button { border: 1px solid #e2e8f0; background: #fff; border-radius: 6px; padding: 8px 16px; cursor: pointer; font-size: 14px; }
        .tabs button.active { background: #0f172a; color: #fff; }
        .panel { display: none; }
        .panel.active { display: block; }
        .toolbar { display: flex; gap: 8px; margin-bottom: 12px; }
        .toolbar input { flex: 1; border: 1px solid #e2e8f0; border-radius: 6px; padding: 8px 12px; font-size: 14px; }
        .toolbar button { border: 1px solid #e2e8f0; background: #fff; border-radius: 6px; padding: 8px 12px; cursor: pointer; font-size: 13px; }
        .toolbar button.active { background: #0f172a; color: #fff; }
        table { width: 100%; border-collapse: collapse; background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; }
        th, td { text-align: left; padding: 10px 12px; border-bottom: 1px solid #f1f5f9; font-size: 14px; }
        th { color: #64748b; font-size: 12px; text-transform: uppercase; }
        .status { font-weight: 600; text-transform: capitalize; }
        .status.passed { color: #16a34a; }
        .status.failed { color: #dc2626; }
        .status.skipped { color: #ca8a04; }
        .status.unknown { color: #64748b; }
        .error-row td { background: #fef2f2; color: #991b1b; font-family: monospace; font-size: 12px; white-space: pre-wrap; }
        .error-cat { display: inline-block; background: #fee2e2; color: #991b1b; border-radius: 4px; padding: 1px 6px; font-size: 11px; margin-right: 8px; font-family: -apple-system, sans-serif; }
        .tag { display: inline-block; background: #f1f5f9; color: #475569; border-radius: 4px; padding: 1px 6px; font-size: 11px; margin-right: 4px; }
        .section { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 16px; margin-bottom: 16px; }
        .section h3 { margin: 0 0 12px; font-size: 15px; }
        .note { color: #64748b; font-size: 12px; margin-top: 8px; }
        ul.plain { margin: 0; padding-left: 18px; font-size: 14px; }
        ul.plain li { margin-bottom: 6px; }
        .sev { border-radius: 4px; padding: 1px 6px; font-size: 11px; font-weight: 600; margin-left: 6px; }
        .sev.high { background: #fee2e2; color: #991b1b; }
        .sev.medium { background: #ffedd5; color: #9a3412; }
        .sev.low { background: #fef9c3; color: #854d0e; }
    </style>
</head>
<body>
    <header>
        <div>
            <h1>{{.ProjectName}}</h1>
            <div class="meta">Test Execution Report &middot; {{formatTimestamp .GeneratedAt}} &middot; v{{.Version}}</div>
        </div>
        <span class="badge {{if ge .SuccessRate 80.0}}good{{else if ge .SuccessRate 50.0}}warn{{else}}bad{{end}}">{{formatRate .SuccessRate}}% passed</span>
    </header>
    <main>
        <div class="cards">
            <div class="card"><p>Total Tests</p><div class="value">{{.Summary.Total}}</div></div>
            <div class="card passed"><p>Passed</p><div class="value">{{.Summary.Passed}}</div></div>
            <div class="card failed"><p>Failed</p><div class="value">{{.Summary.Failed}}</div></div>
            <div class="card skipped"><p>Skipped</p><div class="value">{{.Summary.Skipped}}</div></div>
            <div class="card"><p>Duration</p><div class="value">{{formatDuration .Summary.TotalDuration}}</div></div>
        </div>

        <div class="statusbar">
            {{range .StatusBar}}{{if gt .Count 0}}<div class="seg-{{.Status}}" style="width: {{formatWidth .Width}}%" title="{{.Status}}: {{.Count}}"></div>{{end}}{{end}}
        </div>

        <div class="tabs">
            <button class="active" data-panel="tests">Tests</button>
            <button data-panel="analytics">Analytics</button>
        </div>

        <div id="panel-tests" class="panel active">
            <div class="toolbar">
                <input id="search" type="search" placeholder="Filter by name, description or tag...">
                <button class="filter active" data-status="all">All</button>
                <button class="filter" data-status="passed">Passed</button>
                <button class="filter" data-status="failed">Failed</button>
                <button class="filter" data-status="skipped">Skipped</button>
            </div>
            <table id="records">
                <thead>
                    <tr><th>Test</th><th>File</th><th>Status</th><th>Duration</th><th>Retries</th><th>Tags</th></tr>
                </thead>
                <tbody>
                    {{range .Records}}
                    <tr class="record-row" data-status="{{.Status}}" data-search="{{.TestName}} {{.Description}} {{range .Tags}}{{.}} {{end}}">
                        <td>{{.TestName}}</td>
                        <td>{{.SourceFile}}</td>
                        <td><span class="status {{.Status}}">{{.Status}}</span></td>
                        <td>{{formatDuration .Duration}}</td>
                        <td>{{.RetryCount}}</td>
                        <td>{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</td>
                    </tr>
                    {{if .Error}}
                    <tr class="error-row" data-status="{{.Status}}" data-search="{{.TestName}}">
                        <td colspan="6"><span class="error-cat">{{categorizeError .Error}}</span>{{truncateError .Error}}</td>
                    </tr>
                    {{end}}
                    {{end}}
                </tbody>
            </table>
        </div>

        <div id="panel-analytics" class="panel">
            {{if .Snapshot.FlakyTests}}
            <div class="section">
                <h3>Flaky Tests</h3>
                <ul class="plain">
                    {{range .Snapshot.FlakyTests}}
                    <li>{{.TestName}} <span class="sev {{.Severity}}">{{.Severity}}</span>
                        <ul class="plain">{{range .Reasons}}<li>{{.}}</li>{{end}}</ul>
                    </li>
                    {{end}}
                </ul>
            </div>
            {{end}}
            {{if .Snapshot.SlowestTests}}
            <div class="section">
                <h3>Slowest Tests</h3>
                <ul class="plain">
                    {{range .Snapshot.SlowestTests}}
                    <li>{{.TestName}} &mdash; {{formatDuration .Duration}} (longest step: {{.SlowestStep}}, {{formatDuration .StepDuration}})</li>
                    {{end}}
                </ul>
                <p class="note">Average test duration: {{formatDuration .Snapshot.AverageDuration}}</p>
            </div>
            {{end}}
            <div class="section">
                <h3>Resource Indicators</h3>
                <ul class="plain">
                    <li>Heap in use: {{formatRate .Snapshot.Resources.HeapAllocMB}} MB</li>
                    <li>Process memory: {{formatRate .Snapshot.Resources.SysMB}} MB</li>
                    <li>Goroutines: {{.Snapshot.Resources.NumGoroutine}} &middot; CPUs: {{.Snapshot.Resources.NumCPU}} &middot; Workers: {{.Snapshot.Resources.Workers}}</li>
                </ul>
                <p class="note">Sampled from the {{.Snapshot.Resources.Source}} at analysis time; these figures approximate system load during reporting, not per-test usage.</p>
            </div>
            {{if .Trend}}
            <div class="section">
                <h3>Run History</h3>
                <ul class="plain">
                    {{range .Trend}}
                    <li>{{formatTimestamp .Timestamp}} &mdash; {{formatRate .SuccessRate}}% passed ({{.Passed}}/{{.Total}})</li>
                    {{end}}
                </ul>
            </div>
            {{end}}
        </div>
    </main>

    <script>const REPORT_DATA = {{.Records}};</script>
    <script>
        (function () {
            var tabs = document.querySelectorAll('.tabs button');
            tabs.forEach(function (tab) {
                tab.addEventListener('click', function () {
                    tabs.forEach(function (t) { t.classList.remove('active'); });
                    document.querySelectorAll('.panel').forEach(function (p) { p.classList.remove('active'); });
                    tab.classList.add('active');
                    document.getElementById('panel-' + tab.dataset.panel).classList.add('active');
                });
            });

            var activeStatus = 'all';
            var query = '';
            function applyFilters() {
                document.querySelectorAll('#records tbody tr').forEach(function (row) {
                    var statusOk = activeStatus === 'all' || row.dataset.status === activeStatus;
                    var textOk = query === '' || (row.dataset.search || '').toLowerCase().indexOf(query) !== -1;
                    row.style.display = statusOk && textOk ? '' : 'none';
                });
            }
            document.querySelectorAll('.toolbar .filter').forEach(function (btn) {
                btn.addEventListener('click', function () {
                    document.querySelectorAll('.toolbar .filter').forEach(function (b) { b.classList.remove('active'); });
                    btn.classList.add('active');
                    activeStatus = btn.dataset.status;
                    applyFilters();
                });
            });
            document.getElementById('search').addEventListener('input', function (e) {
                query = e.target.value.toLowerCase();
                applyFilters();
            });
        })();
    </script>
</body>
</html>
`
