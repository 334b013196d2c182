/*
Package adminsdk is a client for the backoffice REST API: authentication,
two-factor setup and verification, profile management and cache inspection.

# Response shapes

The backend does not answer every endpoint in the same shape. Some nest the
payload under "data", some put it at the top level, and field names vary
(accessToken, access_token, token; qrCodeUri, qrCode, otpauthUrl; ...).
Every response is normalized at the client boundary by one function per
response type, so callers only ever see the types in types.go.

# Errors

Any transport failure or non-2xx response comes back as *APIError, which
carries the HTTP status (0 for transport failures) and a message fit to show
a user. A 2xx body with "success": false is treated the same way.

	res, err := client.Setup2FA(ctx, adminsdk.SetupRequest{UserID: id, Type: adminsdk.TwoFactorTOTP})
	if adminsdk.IsRateLimited(err) {
		// start a cooldown rather than offering a retry
	}

# Authentication

The client never stores tokens. Authenticated calls read the bearer token
from Tokens, and a 401 on a call that carried one fires OnUnauthorized:

	client := adminsdk.NewSDKClient("http://localhost:8080/api")
	client.Tokens = controller
	client.OnUnauthorized = func() { controller.Logout(context.Background()) }

Every request carries an X-Request-ID and is logged through slog by the
transport installed in NewSDKClient.
*/
package adminsdk
