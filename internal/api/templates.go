package api

import "html/template"

// Gateway-rendered pages. The admin UI proper lives elsewhere; these cover the
// flows the gateway owns: the login entry, the landing stub and the OAuth
// failure page with its delayed redirect.

// failurePageTmpl shows the localized failure message, then navigates back to
// the login page after the provider's display delay. The meta refresh is
// cancelled naturally when the user navigates away first.
var failurePageTmpl = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="refresh" content="{{.DelaySeconds}};url={{.RedirectURL}}">
    <title>Connexion impossible</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
        }
        .error-icon { font-size: 3rem; }
        h1 { color: #1f2937; font-size: 1.25rem; }
        p { color: #6b7280; }
        a { color: #4f46e5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="error-icon">&#9888;</div>
        <h1>{{.Message}}</h1>
        <p>Vous allez être redirigé vers la page de connexion.</p>
        <p><a href="{{.RedirectURL}}">Réessayer maintenant</a></p>
    </div>
</body>
</html>`))

type failurePage struct {
	Message      string
	DelaySeconds int
	RedirectURL  string
}

// loginPageTmpl renders the login entry with an optional contextual banner
// built from the outcome encoded in the query string.
var loginPageTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <title>Connexion</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 2rem auto; max-width: 420px; }
        .banner { background: #fef2f2; border: 1px solid #fecaca; color: #991b1b; padding: 0.75rem 1rem; border-radius: 8px; margin-bottom: 1rem; }
        form { display: flex; flex-direction: column; gap: 0.75rem; }
        .providers { margin-top: 1.5rem; display: flex; flex-direction: column; gap: 0.5rem; }
    </style>
</head>
<body>
    <h1>Connexion</h1>
    {{if .Banner}}<div class="banner">{{.Banner}}</div>{{end}}
    <form method="post" action="/auth/login">
        <input type="email" name="email" placeholder="E-mail" required>
        <input type="password" name="password" placeholder="Mot de passe" required>
        <button type="submit">Se connecter</button>
    </form>
    <div class="providers">
        {{range .Providers}}<a href="/oauth/{{.}}/start">Continuer avec {{.}}</a>
        {{end}}
    </div>
</body>
</html>`))

type loginPage struct {
	Banner    string
	Providers []string
}

// landingPageTmpl is the authenticated landing stub.
var landingPageTmpl = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <title>Tableau de bord</title>
</head>
<body>
    <h1>Bonjour {{.Name}}</h1>
    <p>Connecté en tant que {{.Email}}.</p>
    <form method="post" action="/auth/logout"><button type="submit">Se déconnecter</button></form>
</body>
</html>`))

type landingPage struct {
	Name  string
	Email string
}
