package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
)

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	var req authsdk.RegisterRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.FullName, "name", "", "full name")
	fs.StringVar(&req.Phone, "phone", "", "phone number")
	fs.StringVar(&req.Organization, "org", "", "organization")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if req.Email, err = a.prompt(req.Email, "Email"); err != nil {
		return err
	}
	if req.FullName, err = a.prompt(req.FullName, "Full name"); err != nil {
		return err
	}
	if req.Password, err = a.newPassword(); err != nil {
		return err
	}

	u, err := a.Client.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Registered %s, sign in with `quickfix login -email %s`\n", u.Email, u.Email)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	var req authsdk.LoginPasswordRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.BoolVar(&req.AdminMode, "admin", false, "sign in through the admin entry point")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if req.Email, err = a.prompt(req.Email, "Email"); err != nil {
		return err
	}
	if req.Password, err = a.password("Password"); err != nil {
		return err
	}

	resp, err := a.Client.LoginPassword(ctx, req)
	if err != nil {
		return err
	}
	return a.signedIn(resp)
}

func (a *App) otp(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: otp request|verify")
	}

	fs := a.flags("otp " + args[0])
	email := fs.String("email", "", "account email")
	switch args[0] {
	case "request":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		addr, err := a.prompt(*email, "Email")
		if err != nil {
			return err
		}
		resp, err := a.Client.RequestOTP(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, resp.Message)
		return nil

	case "verify":
		code := fs.String("code", "", "six digit code from the email")
		google := fs.Bool("google", false, "complete a Google sign-in")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		req := authsdk.VerifyOTPRequest{Email: *email, OTP: *code}
		var err error
		if req.Email, err = a.prompt(req.Email, "Email"); err != nil {
			return err
		}
		if req.OTP, err = a.prompt(req.OTP, "Code"); err != nil {
			return err
		}

		verify := a.Client.VerifyOTP
		if *google {
			verify = a.Client.GoogleVerifyOTP
		}
		resp, err := verify(ctx, req)
		if err != nil {
			return err
		}
		return a.signedIn(resp)

	default:
		return fmt.Errorf("unknown otp command %q, use request or verify", args[0])
	}
}

func (a *App) google(ctx context.Context, args []string) error {
	fs := a.flags("google")
	var req authsdk.GoogleLoginRequest
	fs.StringVar(&req.Token, "token", "", "Google ID token or access token")
	fs.StringVar(&req.Name, "name", "", "display name for a new account")
	fs.BoolVar(&req.AdminMode, "admin", false, "sign in through the admin entry point")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.Client.GoogleLogin(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, resp.Message)
	fmt.Fprintf(a.Out, "Finish with `quickfix otp verify -google -email %s -code <code>`\n", resp.Email)
	return nil
}

func (a *App) forgot(ctx context.Context, args []string) error {
	fs := a.flags("forgot")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := a.prompt(*email, "Email")
	if err != nil {
		return err
	}
	resp, err := a.Client.ForgotPassword(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, resp.Message)
	return nil
}

func (a *App) reset(ctx context.Context, args []string) error {
	fs := a.flags("reset")
	var req authsdk.ResetPasswordRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.ResetToken, "token", "", "token from the reset email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if req.Email, err = a.prompt(req.Email, "Email"); err != nil {
		return err
	}
	if req.ResetToken, err = a.prompt(req.ResetToken, "Reset token"); err != nil {
		return err
	}
	if req.NewPassword, err = a.newPassword(); err != nil {
		return err
	}

	resp, err := a.Client.ResetPassword(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, resp.Message)
	return nil
}
