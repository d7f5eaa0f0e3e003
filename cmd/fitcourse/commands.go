package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/fitcourse/internal/auth"
	fitmcp "github.com/meltforce/fitcourse/internal/mcp"
	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/progress"
	"github.com/meltforce/fitcourse/internal/session"
)

type usageError string

func (e usageError) Error() string { return string(e) }

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signUp(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.sessions.Logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "name":
		return a.setName(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "change-password":
		return a.changePassword(ctx, args)
	case "catalog":
		return a.catalog(ctx)
	case "my-courses":
		return a.myCourses(ctx)
	case "enroll", "unenroll", "reset":
		return a.courseMutation(ctx, cmd, args)
	case "course":
		return a.course(ctx, args)
	case "workout":
		return a.workout(ctx, args)
	case "start":
		return a.start(ctx, args)
	case "save":
		return a.save(ctx, args)
	case "mcp":
		return mcpserver.ServeStdio(fitmcp.New(a.repo, a.sessions, Version, a.log))
	case "watch":
		return a.watch(ctx)
	default:
		return usageError("unknown command " + strconv.Quote(cmd))
	}
}

func credentialFlags(name string, args []string) (email, password string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	e := fs.String("email", "", "account email")
	p := fs.String("password", os.Getenv("FITCOURSE_PASSWORD"), "account password (or FITCOURSE_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return "", "", usageError(err.Error())
	}
	if *e == "" || *p == "" {
		return "", "", usageError(name + " requires -email and -password")
	}
	return *e, *p, nil
}

// identity returns the signed-in user, or ErrNotSignedIn.
func (a *app) identity() (*models.Identity, error) {
	id := a.sessions.Current()
	if id == nil {
		return nil, auth.ErrNotSignedIn
	}
	a.sessions.RecordActivity()
	return id, nil
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError(cmd + " takes exactly one id")
	}
	return args[0], nil
}

func (a *app) signUp(ctx context.Context, args []string) error {
	email, password, err := credentialFlags("signup", args)
	if err != nil {
		return err
	}
	id, err := a.sessions.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.repo.EnsureProfile(ctx, id); err != nil {
		a.log.Warn("creating profile failed", "error", err)
	}
	fmt.Printf("Signed up as %s\n", id.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	email, password, err := credentialFlags("login", args)
	if err != nil {
		return err
	}
	id, err := a.sessions.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", id.Email)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	id := a.sessions.Current()
	if id == nil {
		fmt.Println("Not signed in")
		return nil
	}
	a.sessions.RecordActivity()
	u, err := a.repo.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", u.Name(), id.Email)
	return nil
}

func (a *app) setName(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("name requires a display name")
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	u, err := a.repo.SetDisplayName(ctx, id, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Display name set to %s\n", u.Name())
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil || *email == "" {
		return usageError("reset-password requires -email")
	}
	if err := a.sessions.ResetPassword(ctx, *email); err != nil {
		return err
	}
	fmt.Println("Password reset requested")
	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	password := fs.String("password", os.Getenv("FITCOURSE_PASSWORD"), "new password")
	if err := fs.Parse(args); err != nil || *password == "" {
		return usageError("change-password requires -password")
	}
	if err := a.sessions.ChangePassword(ctx, *password); err != nil {
		return err
	}
	a.sessions.RecordActivity()
	fmt.Println("Password changed")
	return nil
}

func (a *app) catalog(ctx context.Context) error {
	list, err := a.repo.ListCatalog(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tDIFFICULTY\tWORKOUTS")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.NameEN, difficulty(c.Difficulty), len(c.Workouts))
	}
	return tw.Flush()
}

func difficulty(n int) string {
	return strings.Repeat("*", n) + strings.Repeat(".", models.MaxDifficulty-n)
}

func (a *app) myCourses(ctx context.Context) error {
	id, err := a.identity()
	if err != nil {
		return err
	}
	list, err := a.repo.ListEnrollments(ctx, id)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No courses yet. Use `fitcourse catalog` and `fitcourse enroll`.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tDONE\tNEXT")
	for _, c := range list {
		cp := a.repo.CourseProgress(ctx, id, &c)
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\n", c.ID, c.NameEN, cp.Percent, cp.Action)
	}
	return tw.Flush()
}

func (a *app) courseMutation(ctx context.Context, cmd string, args []string) error {
	courseID, err := oneArg(cmd, args)
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	c, err := a.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("course %q not found", courseID)
	}

	switch cmd {
	case "enroll":
		err = a.repo.Enroll(ctx, id, courseID)
	case "unenroll":
		err = a.repo.Unenroll(ctx, id, courseID)
	case "reset":
		err = a.repo.ResetCourseProgress(ctx, id, courseID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", cmd, c.NameEN)
	return nil
}

func (a *app) course(ctx context.Context, args []string) error {
	courseID, err := oneArg("course", args)
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	c, err := a.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("course %q not found", courseID)
	}

	cp := a.repo.CourseProgress(ctx, id, c)
	fmt.Printf("%s: %d%% (%s)\n", c.NameEN, cp.Percent, cp.Action)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, w := range cp.Workouts {
		mark := " "
		if w.Summary.Complete {
			mark = "x"
		}
		note := ""
		if w.Degraded {
			note = "(unavailable)"
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", mark, w.Workout.ID, w.Workout.Name, note)
	}
	return tw.Flush()
}

func (a *app) workout(ctx context.Context, args []string) error {
	workoutID, err := oneArg("workout", args)
	if err != nil {
		return err
	}
	w, err := a.repo.GetWorkout(ctx, workoutID)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("workout %q not found", workoutID)
	}
	fmt.Printf("%s\n%s\n", w.Name, w.Video)

	var rec models.ProgressRecord
	if id := a.sessions.Current(); id != nil {
		a.sessions.RecordActivity()
		if rec, err = a.repo.GetProgress(ctx, id, workoutID); err != nil {
			return err
		}
	}
	printSummary(progress.SummarizeWorkout(rec, *w))
	return nil
}

func printSummary(s progress.WorkoutSummary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, ex := range s.Exercises {
		fmt.Fprintf(tw, "  %s\t%d/%d\t%d%%\n", ex.Label, ex.Done, ex.Target, ex.Percent)
	}
	tw.Flush()
	if s.Complete {
		fmt.Println("Complete")
	}
}

func (a *app) start(ctx context.Context, args []string) error {
	workoutID, err := oneArg("start", args)
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	w, err := a.repo.GetWorkout(ctx, workoutID)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("workout %q not found", workoutID)
	}
	rec, err := a.repo.StartWorkout(ctx, id, w)
	if err != nil {
		return err
	}
	printSummary(progress.SummarizeWorkout(rec, *w))
	return nil
}

// parseCounts reads NAME=COUNT pairs. A bare "done" marks a workout without
// exercises as completed.
func parseCounts(pairs []string) (map[string]float64, error) {
	counts := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		if p == "done" {
			counts[models.CompletedKey] = 100
			continue
		}
		i := strings.LastIndex(p, "=")
		if i <= 0 {
			return nil, usageError(fmt.Sprintf("bad count %q, want NAME=COUNT", p))
		}
		n, err := strconv.ParseFloat(p[i+1:], 64)
		if err != nil {
			return nil, usageError(fmt.Sprintf("bad count %q: %v", p, err))
		}
		counts[p[:i]] = n
	}
	return counts, nil
}

func (a *app) save(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("save takes a workout id and at least one NAME=COUNT")
	}
	counts, err := parseCounts(args[1:])
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	w, err := a.repo.GetWorkout(ctx, args[0])
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("workout %q not found", args[0])
	}
	rec, err := a.repo.SaveProgress(ctx, id, w.ID, counts)
	if err != nil {
		return err
	}
	printSummary(progress.SummarizeWorkout(rec, *w))
	return nil
}

// watch keeps the process alive so the periodic inactivity check runs, and
// prints every session transition until interrupted.
func (a *app) watch(ctx context.Context) error {
	unsubscribe := a.sessions.Subscribe(func(s session.State) {
		if s.Authenticated() {
			fmt.Printf("signed in: %s\n", s.Identity.Email)
		} else {
			fmt.Println("signed out")
		}
	})
	defer unsubscribe()

	if id := a.sessions.Current(); id != nil {
		fmt.Printf("watching session of %s (inactivity timeout %s)\n", id.Email, a.cfg.InactivityTimeout)
	} else {
		fmt.Println("watching (not signed in)")
	}
	<-ctx.Done()
	return nil
}
