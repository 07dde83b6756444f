/*
Package authsdk is the client SDK for the QuickFix authentication service.

# SDKClient and Session

SDKClient covers the unauthenticated /auth/* endpoints. Every sign-in
call returns an AuthResponse whose AccessToken is an opaque bearer token;
wrap it in a Session for the calls that need it:

	client := authsdk.NewSDKClient("https://api.quickfix.example")

	resp, err := client.LoginPassword(ctx, authsdk.LoginPasswordRequest{
		Email:    "ana@example.com",
		Password: "secret",
	})
	if err != nil {
		return err
	}

	session := client.NewSession(resp.AccessToken)
	me, err := session.Me(ctx)

Code sign-in is two calls, RequestOTP and then VerifyOTP. Google sign-in
is GoogleLogin followed by GoogleVerifyOTP with the code mailed to the
Google address.

# Errors

Rejections from the server are *APIError values. They compare with
errors.Is on the error code, so the predefined errors work as sentinels:

	_, err := client.VerifyOTP(ctx, req)
	switch {
	case errors.Is(err, authsdk.ErrCodeExpired):
		// ask for a new code
	case errors.Is(err, authsdk.ErrUnreachable):
		// the server could not be reached at all
	}

Request types have a Validate method returning per-field messages. The
client runs it before sending, so malformed input fails with
ErrValidation without a network round trip.

# Persisted sessions

SessionContext keeps the signed-in identity across process restarts.
Hydrate reads it without contacting the server, Persist replaces it after
every sign-in and Clear removes it on logout:

	path, _ := authsdk.DefaultSessionPath()
	sc := authsdk.NewSessionContext(&authsdk.FileSessionStore{Path: path})
	if _, err := sc.Hydrate(); err != nil {
		return err
	}
	if err := sc.Persist(authsdk.NewStoredSession(resp, time.Now())); err != nil {
		return err
	}

The server checks the token on every call. A stale token loaded by
Hydrate surfaces as ErrUnauthenticated on first use.
*/
package authsdk
