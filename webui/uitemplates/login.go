package uitemplates

type LogInParams struct {
	PageParams

	GoogleClientID string
}

var logInText = `{{define "title"}}Log In{{end}}

{{define "head"}}
{{if .GoogleClientID}}<script src="https://accounts.google.com/gsi/client" async defer></script>{{end}}
{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/log-in">Log In</a></li>
{{- end}}

{{define "content"}}
<h1>Log In</h1>
<form method="POST">
  <div class="mb-3">
    <label for="email" class="form-label">Email</label>
    <input type="email" name="email" id="email" class="form-control" required>
  </div>
  <div class="mb-3">
    <label for="password" class="form-label">Password</label>
    <input type="password" name="password" id="password" class="form-control" required>
  </div>
  <button type="submit" class="btn btn-primary">Log In</button>
</form>

{{if .GoogleClientID}}
<div class="mt-3">
  <div id="g_id_onload"
       data-client_id="{{.GoogleClientID}}"
       data-login_uri="/log-in-google"
       data-auto_prompt="false">
  </div>
  <div class="g_id_signin" data-type="standard"></div>
</div>
{{end}}
{{end}}
`

var logInTemplate = mustPage("log-in", logInText)

func LogInPage(params *LogInParams) ([]byte, error) {
	return execute(logInTemplate, params)
}
