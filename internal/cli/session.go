package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
)

func (a *App) whoami(ctx context.Context, _ []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	u, err := s.Me(ctx)
	if err != nil {
		return a.dropIfStale(err)
	}
	if err := a.refreshUser(*u); err != nil {
		return err
	}
	printUser(a.Out, *u)
	return nil
}

func (a *App) profile(ctx context.Context, args []string) error {
	fs := a.flags("profile")
	fs.String("name", "", "full name")
	fs.String("phone", "", "phone number")
	fs.String("org", "", "organization")
	fs.String("image", "", "profile image URL")
	fs.String("bio", "", "short bio")
	fs.String("location", "", "location")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags given on the command line are sent, so an explicit empty
	// value clears the field.
	var req authsdk.UpdateProfileRequest
	members := map[string]**string{
		"name":     &req.FullName,
		"phone":    &req.Phone,
		"org":      &req.Organization,
		"image":    &req.ProfileImage,
		"bio":      &req.Bio,
		"location": &req.Location,
	}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		*members[f.Name] = &v
	})
	if req.Empty() {
		return errors.New("nothing to update, pass at least one flag")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	current, err := a.Session.Current()
	if err != nil {
		return err
	}
	u, err := s.UpdateProfile(ctx, current.User.Email, req)
	if err != nil {
		return a.dropIfStale(err)
	}
	if err := a.refreshUser(*u); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Profile updated")
	printUser(a.Out, *u)
	return nil
}

func (a *App) users(ctx context.Context, _ []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	list, err := s.ListUsers(ctx)
	if err != nil {
		return a.dropIfStale(err)
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Email, u.FullName, u.Role, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// logout always forgets the local session, even when the server has
// already ended it.
func (a *App) logout(ctx context.Context, _ []string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.Logout(ctx); err != nil && !errors.Is(err, authsdk.ErrUnauthenticated) {
		return err
	}
	if err := a.Session.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Signed out")
	return nil
}

func (a *App) refreshUser(u authsdk.User) error {
	current, err := a.Session.Current()
	if err != nil {
		return err
	}
	return a.Session.Persist(current.WithUser(u))
}

func printUser(w io.Writer, u authsdk.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", u.FullName)
	fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	for _, f := range []struct{ label, value string }{
		{"Phone", u.Phone},
		{"Organization", u.Organization},
		{"Location", u.Location},
		{"Bio", u.Bio},
	} {
		if f.value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", f.label, f.value)
		}
	}
	signIn := "password"
	switch {
	case u.HasPassword && u.GoogleLinked:
		signIn = "password, Google"
	case u.GoogleLinked:
		signIn = "Google"
	}
	fmt.Fprintf(tw, "Sign-in:\t%s\n", signIn)
	_ = tw.Flush()
}
