package api

const pageStyle = `
  body { margin: 0; font-family: "Segoe UI", "Helvetica Neue", sans-serif; color: #1d2733; background: #f5f7fa; }
  .shell { max-width: 960px; margin: 0 auto; padding: 24px 16px; }
  h1 { font-size: 1.5rem; margin: 0 0 4px; }
  .sub { color: #66727f; font-size: 0.9rem; margin-bottom: 18px; }
  .card { background: #ffffff; border: 1px solid #dde3ea; border-radius: 10px; padding: 16px; margin-bottom: 14px; }
  a { color: #1668a5; text-decoration: none; }
  a:hover { text-decoration: underline; }
  table { width: 100%; border-collapse: collapse; }
  th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #eceff3; font-size: 0.92rem; }
  th { color: #66727f; font-weight: 600; }
  .banner { border-radius: 8px; padding: 10px 12px; margin-bottom: 14px; font-size: 0.92rem; }
  .banner.success { background: #e4f5ec; color: #17663b; }
  .banner.error { background: #fbe9e7; color: #a13326; }
  .controls { display: flex; gap: 8px; margin-bottom: 14px; }
  .controls input { flex: 1; padding: 8px 10px; border: 1px solid #c7d0da; border-radius: 8px; }
  .controls button, .btn { padding: 8px 14px; border: 0; border-radius: 8px; background: #1668a5; color: #ffffff; cursor: pointer; font-size: 0.92rem; }
  .muted { color: #8a95a1; }
  iframe { width: 100%; height: 75vh; border: 1px solid #dde3ea; border-radius: 10px; background: #ffffff; }
`

const homeTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Name}}</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="shell">
    <h1>{{.Name}}</h1>
    <div class="sub">Collect survey responses through KoboToolbox and browse them locally.</div>
    <div class="card">
      <p>This service embeds a KoboToolbox survey form, pulls submitted responses
      into a local database, and exposes them through a small REST API.</p>
      <ul>
        <li><a href="/submit/">Submit a survey response</a></li>
        <li><a href="/submissions/">Browse synced submissions</a></li>
        <li><a href="/api/submissions/">Submissions API</a></li>
        <li><a href="/health/">Health check</a></li>
      </ul>
    </div>
  </div>
</body>
</html>`

const submitTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Submit Survey</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="shell">
    <h1>Submit Survey</h1>
    <div class="sub"><a href="/">&larr; Home</a></div>
    {{if .FormURL}}
    <iframe src="{{.FormURL}}" title="Survey form"></iframe>
    {{else}}
    <div class="card">
      <p class="muted">No form is configured. Set <code>KOBO_FORM_URL</code> to the
      form's embed URL to render it here.</p>
    </div>
    {{end}}
  </div>
</body>
</html>`

const submissionsTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Submissions</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="shell">
    <h1>Submissions</h1>
    <div class="sub"><a href="/">&larr; Home</a></div>
    {{if .SyncMessage}}
    <div class="banner {{.SyncStatus}}">{{.SyncMessage}}</div>
    {{end}}
    <form class="controls" method="get" action="/submissions/">
      <input type="text" name="search" placeholder="Search submissions..." value="{{.SearchQuery}}" />
      <button type="submit">Search</button>
      <button type="submit" name="sync" value="true">Sync now</button>
    </form>
    <div class="card">
      {{if .Rows}}
      <table>
        <thead>
          <tr><th>UUID</th><th>Form</th><th>Submitted</th><th>Synced</th><th></th></tr>
        </thead>
        <tbody>
          {{range .Rows}}
          <tr>
            <td title="{{.RemoteID}}">{{.ShortID}}</td>
            <td>{{.FormUID}}</td>
            <td>{{.Submitted}}</td>
            <td>{{.Synced}}</td>
            <td><a href="/submissions/{{.ID}}/">View</a></td>
          </tr>
          {{end}}
        </tbody>
      </table>
      {{else}}
      <p class="muted">No submissions yet. Use "Sync now" to pull responses from KoboToolbox.</p>
      {{end}}
    </div>
  </div>
</body>
</html>`

const detailTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Submission {{.RemoteID}}</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="shell">
    <h1>Submission {{.RemoteID}}</h1>
    <div class="sub"><a href="/submissions/">&larr; All submissions</a></div>
    <div class="card">
      <table>
        <tr><th>Form</th><td>{{.FormUID}}</td></tr>
        <tr><th>Submitted</th><td>{{.Submitted}}</td></tr>
        <tr><th>Synced</th><td>{{.Synced}}</td></tr>
      </table>
    </div>
    <div class="card">
      <table>
        <thead><tr><th>Field</th><th>Answer</th></tr></thead>
        <tbody>
          {{range .Fields}}
          <tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
          {{end}}
        </tbody>
      </table>
    </div>
  </div>
</body>
</html>`
