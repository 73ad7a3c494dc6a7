package uitemplates

type SignUpParams struct {
	PageParams
}

var signUpText = `{{define "title"}}Sign Up{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/sign-up">Sign Up</a></li>
{{- end}}

{{define "content"}}
<h1>Sign Up</h1>
<form method="POST">
  <div class="mb-3">
    <label for="email" class="form-label">Email</label>
    <input type="email" name="email" id="email" class="form-control" required>
  </div>
  <div class="mb-3">
    <label for="display-name" class="form-label">Name</label>
    <input type="text" name="display-name" id="display-name" class="form-control">
  </div>
  <div class="mb-3">
    <label for="password" class="form-label">Password</label>
    <input type="password" name="password" id="password" class="form-control" minlength="8" required>
  </div>
  <button type="submit" class="btn btn-primary">Sign Up</button>
</form>
{{end}}
`

var signUpTemplate = mustPage("sign-up", signUpText)

func SignUpPage(params *SignUpParams) ([]byte, error) {
	return execute(signUpTemplate, params)
}
