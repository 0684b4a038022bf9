package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
)

const identityHost = "https://identity.vwgroup.io"

var (
	idkBlobRegex  = regexp.MustCompile(`(?s)<script>\s*window\._IDK\s*=\s*\{\s*(.+?)\s*\};?\s*</script>`)
	idkLineRegex  = regexp.MustCompile(`(?m)^\s*(\w+)\s*:\s*(.+?),?\s*$`)
	quotedValueRE = regexp.MustCompile(`^'(.*)'$`)
)

// idkModel 登录页 JS 模板中的关键字段
type idkModel struct {
	Error                   string      `json:"error"`
	ErrorCode               interface{} `json:"errorCode"`
	PostAction              string      `json:"postAction"`
	RelayState              string      `json:"relayState"`
	HMAC                    string      `json:"hmac"`
	RegisterCredentialsPath string      `json:"registerCredentialsPath"`
	EmailPasswordForm       struct {
		Email string `json:"email"`
	} `json:"emailPasswordForm"`
}

// webAuth 模拟手机 App 的网页登录流程
// 返回带授权结果参数的终点 URL
func (s *Session) webAuth(ctx context.Context, authorizationURL string) (*url.URL, error) {
	web := &http.Client{
		Transport: s.client.Transport,
		Jar:       s.client.Jar,
		Timeout:   s.client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// 第一步 跟随授权端点的重定向直到拿到登录页
	loginPage, err := s.followToLoginForm(ctx, web, authorizationURL)
	if err != nil {
		return nil, err
	}

	// 第二步 解析邮箱表单并提交用户名
	passwordPage, err := s.submitEmailForm(ctx, web, loginPage)
	if err != nil {
		return nil, err
	}

	// 第三步 解析密码页 JS 模板并提交密码
	location, err := s.submitPasswordForm(ctx, web, passwordPage)
	if err != nil {
		return nil, err
	}

	// 第四步 跟随重定向链直到回到 App 的 redirect URI
	return s.followToRedirectURI(ctx, web, location)
}

func (s *Session) followToLoginForm(ctx context.Context, web *http.Client, rawURL string) (string, error) {
	current := rawURL
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("create login page request: %w", err)
		}
		setBrowserHeaders(req)
		resp, err := web.Do(req)
		if err != nil {
			return "", apierr.WrapRetrievalError("retrieving login page failed", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return "", apierr.WrapRetrievalError("reading login page failed", readErr)
			}
			return string(body), nil
		case http.StatusFound, http.StatusSeeOther:
			location := resp.Header.Get("Location")
			if location == "" {
				return "", apierr.NewCompatibilityError("forwarding without Location in header")
			}
			current, err = resolveLocation(current, location)
			if err != nil {
				return "", err
			}
		case http.StatusInternalServerError:
			return "", apierr.NewRetrievalError("temporary server error during login")
		default:
			return "", apierr.NewCompatibilityError(
				"retrieving credentials page was not successful, status code: %d", resp.StatusCode)
		}
	}
}

// submitEmailForm 提交邮箱表单，返回密码页 HTML
func (s *Session) submitEmailForm(ctx context.Context, web *http.Client, page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", apierr.NewCompatibilityError("login page could not be parsed: %v", err)
	}

	form := doc.Find("form#emailPasswordForm")
	if form.Length() == 0 {
		return "", apierr.NewCompatibilityError("no login email form found")
	}
	action, ok := form.Attr("action")
	if !ok || action == "" {
		return "", apierr.NewCompatibilityError("login email form has no action")
	}

	formData := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, hasName := input.Attr("name")
		if !hasName || name == "" {
			return
		}
		value, _ := input.Attr("value")
		formData.Set(name, value)
	})
	// 多余的隐藏字段原样回传，缺少必需字段才是页面不兼容
	for _, name := range []string{"_csrf", "relayState", "hmac", "email"} {
		if !formData.Has(name) {
			return "", apierr.NewCompatibilityError("could not find all required input fields in login page")
		}
	}
	formData.Set("email", s.user.Username)

	target := identityHost + action
	resp, err := s.postForm(ctx, web, target, formData, true)
	if err != nil {
		return "", apierr.WrapRetrievalError("submitting email form failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", apierr.WrapRetrievalError("reading credentials page failed", err)
		}
		return string(body), nil
	case http.StatusInternalServerError:
		return "", apierr.NewRetrievalError("temporary server error during login")
	default:
		return "", apierr.NewCompatibilityError(
			"retrieving credentials page was not successful, status code: %d", resp.StatusCode)
	}
}

// submitPasswordForm 提交密码表单，返回转发 Location
func (s *Session) submitPasswordForm(ctx context.Context, web *http.Client, page string) (string, error) {
	model, csrf, err := parseIDKBlob(page)
	if err != nil {
		return "", err
	}

	switch {
	case model.Error == "validator.email.invalid":
		return "", apierr.NewAuthenticationError("error during login, email invalid")
	case model.Error != "":
		return "", apierr.NewAuthenticationError("error during login: %s", model.Error)
	case model.RegisterCredentialsPath == "register":
		return "", apierr.NewAuthenticationError("error during login, account %s does not exist", s.user.Username)
	case model.ErrorCode != nil:
		return "", apierr.NewAuthenticationError("error during login, is the username correct?")
	case model.PostAction == "":
		return "", apierr.NewCompatibilityError("form does not contain postAction")
	}

	formData := url.Values{}
	formData.Set("_csrf", csrf)
	formData.Set("relayState", model.RelayState)
	formData.Set("hmac", model.HMAC)
	formData.Set("email", model.EmailPasswordForm.Email)
	formData.Set("password", s.user.Password)

	target := fmt.Sprintf("%s/signin-service/v1/%s/%s", identityHost, s.config.ClientID, model.PostAction)
	resp, err := s.postForm(ctx, web, target, formData, false)
	if err != nil {
		return "", apierr.WrapRetrievalError("submitting password form failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusFound, http.StatusSeeOther:
	case http.StatusInternalServerError:
		return "", apierr.NewRetrievalError("temporary server error during login")
	default:
		return "", apierr.NewCompatibilityError(
			"forwarding expected (status code 302), but got status code %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", apierr.NewCompatibilityError("no url for forwarding in response headers")
	}

	parsed, err := url.Parse(location)
	if err != nil {
		return "", apierr.NewCompatibilityError("forwarding url could not be parsed: %v", err)
	}
	params := parsed.Query()

	if errParam := params.Get("error"); errParam != "" {
		message := errParam
		switch errParam {
		case "login.errors.password_invalid":
			message = "Password is invalid"
		case "login.error.throttled":
			message = "Login throttled, probably too many wrong logins. You have to wait some" +
				" minutes until a new login attempt is possible"
		}
		return "", apierr.NewAuthenticationError("%s", message)
	}

	if params.Get("userId") == "" {
		if params.Get("updated") == "dataprivacy" {
			return "", apierr.NewAuthenticationError("you have to login at myskoda and accept the terms and conditions")
		}
		return "", apierr.NewCompatibilityError(
			"no user id provided. A possible reason is that you have to reconfirm the terms and conditions")
	}
	s.userID = params.Get("userId")

	return resolveLocation(target, location)
}

// followToRedirectURI 跟随剩余重定向链直到回到 App 的 redirect URI
// 途中遇到 consent 或 terms-and-conditions 页面说明账号需要先确认条款
func (s *Session) followToRedirectURI(ctx context.Context, web *http.Client, current string) (*url.URL, error) {
	consentURL := ""
	for {
		if strings.Contains(current, "consent") {
			consentURL = current
		}
		if strings.Contains(current, "terms-and-conditions") {
			return nil, apierr.NewAuthenticationError(
				"it seems like you need to accept the terms and conditions."+
					" Try to visit the URL %q or log into the smartphone app", current)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, fmt.Errorf("create forwarding request: %w", err)
		}
		setBrowserHeaders(req)
		resp, err := web.Do(req)
		if err != nil {
			return nil, apierr.WrapRetrievalError("following login forwarding failed", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusInternalServerError {
			return nil, apierr.NewRetrievalError("temporary server error during login")
		}

		location := resp.Header.Get("Location")
		if location == "" {
			if consentURL != "" {
				return nil, apierr.NewAuthenticationError(
					"it seems like you need to accept the terms and conditions."+
						" Try to visit the URL %q or log into the smartphone app", consentURL)
			}
			return nil, apierr.NewCompatibilityError("no Location for forwarding in response headers")
		}

		if strings.HasPrefix(location, s.config.RedirectURI) {
			// App 自定义 scheme 的 fragment 改写成可解析的查询串
			queryURL := location
			if strings.HasPrefix(location, s.config.RedirectURI+"#") {
				queryURL = strings.Replace(location, s.config.RedirectURI+"#", "https://egal?", 1)
			}
			terminal, err := url.Parse(queryURL)
			if err != nil {
				return nil, apierr.NewCompatibilityError("authorization response could not be parsed: %v", err)
			}
			return terminal, nil
		}

		current, err = resolveLocation(current, location)
		if err != nil {
			return nil, err
		}
	}
}

func (s *Session) postForm(ctx context.Context, web *http.Client, target string, data url.Values, followRedirects bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create form request: %w", err)
	}
	setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if followRedirects {
		follower := &http.Client{Transport: web.Transport, Jar: web.Jar, Timeout: s.client.Timeout}
		return follower.Do(req)
	}
	return web.Do(req)
}

// parseIDKBlob 解析登录页内嵌的 window._IDK JS 对象
// templateModel 行是合法 JSON，csrf_token 是单引号字符串
func parseIDKBlob(page string) (*idkModel, string, error) {
	blob := idkBlobRegex.FindStringSubmatch(page)
	if blob == nil {
		return nil, "", apierr.NewCompatibilityError("no credentials form found")
	}

	model := &idkModel{}
	csrf := ""
	haveModel := false
	for _, line := range idkLineRegex.FindAllStringSubmatch(blob[1], -1) {
		name, value := line[1], line[2]
		switch name {
		case "templateModel":
			payload := strings.TrimSuffix(value, ",")
			if err := json.Unmarshal([]byte(payload), model); err != nil {
				return nil, "", apierr.NewCompatibilityError("credentials template could not be parsed: %v", err)
			}
			haveModel = true
		case "csrf_token":
			if m := quotedValueRE.FindStringSubmatch(value); m != nil {
				csrf = m[1]
			} else {
				csrf = value
			}
		}
	}
	if !haveModel {
		return nil, "", apierr.NewCompatibilityError("credentials template not found in page")
	}
	return model, csrf, nil
}

// resolveLocation 把相对 Location 解析为绝对 URL
func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", apierr.NewCompatibilityError("base url could not be parsed: %v", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", apierr.NewCompatibilityError("forwarding url could not be parsed: %v", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 (KHTML, like Gecko)"+
		" Version/4.0 Chrome/74.0.3729.185 Mobile Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Requested-With", "cz.skodaauto.connect")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
