package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"courseeditor/internal/config"
	"courseeditor/internal/logger"
	"courseeditor/internal/models"
	"courseeditor/internal/mutations"
	"courseeditor/internal/reqctx"
	"courseeditor/internal/statemanager"
	"courseeditor/internal/utils"
	"courseeditor/internal/webservice"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var entityNames = []string{"course", "section", "cm"}

// session — загруженный курс и диспетчер для одной команды.
type session struct {
	cfg      *config.Config
	courseID int
	sm       *statemanager.StateManager
	disp     *mutations.Dispatcher
	out      io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	s := &session{out: out}

	root := &cobra.Command{
		Use:           "courseedit",
		Short:         "Редактирование структуры курса через вебсервис",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			s.cfg = cfg
			logger.InitCLILogger(cfg.LogLevel)
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().IntVar(&s.courseID, "course", 0, "id курса")

	root.AddCommand(
		s.stateCmd(),
		s.moveCmsCmd(),
		s.moveSectionsCmd(),
		s.refreshCmd(),
		s.visibilityCmd("hide", "Скрыть модули или разделы", true),
		s.visibilityCmd("show", "Показать модули или разделы", false),
		s.tokenCmd(),
	)
	return root
}

// connect загружает курс и подписывается на изменения, чтобы печатать их.
func (s *session) connect(cmd *cobra.Command) (context.Context, error) {
	if s.courseID <= 0 {
		return nil, errors.New("нужен --course")
	}
	if err := s.cfg.ValidateClient(); err != nil {
		return nil, err
	}

	ctx := reqctx.WithRequestID(cmd.Context(), uuid.NewString())
	client := webservice.NewClient(s.cfg.WebserviceURL, s.cfg.WebserviceToken, s.cfg.WebserviceTimeout)

	var opts []mutations.Option
	if s.cfg.SequenceMutations {
		opts = append(opts, mutations.WithSequencer(mutations.NewSequencer()))
	}
	s.disp = mutations.NewDispatcher(client, s.courseID, opts...)
	s.sm = statemanager.New()

	if err := s.disp.LoadInitialState(ctx, s.sm); err != nil {
		return nil, errors.Wrapf(err, "загрузка курса %d", s.courseID)
	}

	for _, name := range entityNames {
		for _, action := range []string{"created", "updated", "deleted"} {
			s.sm.Subscribe(name+":"+action, s.printEvent)
		}
	}
	return ctx, nil
}

func (s *session) printEvent(ev statemanager.Event) {
	fields, _ := json.Marshal(ev.Fields)
	fmt.Fprintf(s.out, "%s %s[%d] %s\n", ev.Action, ev.Name, ev.ID, fields)
}

func (s *session) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Показать текущее состояние курса",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.connect(cmd); err != nil {
				return err
			}
			state := models.CourseState{
				Sections: s.sm.All("section"),
				Modules:  s.sm.All("cm"),
			}
			if course, ok := s.sm.Get("course", s.courseID); ok {
				state.Course = course
			}
			enc := json.NewEncoder(s.out)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		},
	}
}

func (s *session) moveCmsCmd() *cobra.Command {
	var target mutations.MoveTarget
	cmd := &cobra.Command{
		Use:   "move-cms ID...",
		Short: "Перенести модули в конец раздела или перед модулем",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx, err := s.connect(cmd)
			if err != nil {
				return err
			}
			return s.disp.MoveModules(ctx, s.sm, ids, target)
		},
	}
	cmd.Flags().IntVar(&target.SectionID, "section", 0, "id раздела назначения")
	cmd.Flags().IntVar(&target.CmID, "before", 0, "id модуля, перед которым вставить")
	return cmd
}

func (s *session) moveSectionsCmd() *cobra.Command {
	var after int
	cmd := &cobra.Command{
		Use:   "move-sections ID...",
		Short: "Поставить разделы после указанного",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx, err := s.connect(cmd)
			if err != nil {
				return err
			}
			return s.disp.MoveSections(ctx, s.sm, ids, after)
		},
	}
	cmd.Flags().IntVar(&after, "after", 0, "id раздела, после которого поставить")
	return cmd
}

func (s *session) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "refresh (cm|section|course) [ID...]",
		Short:     "Перечитать состояние с сервера",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: entityNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			ctx, err := s.connect(cmd)
			if err != nil {
				return err
			}
			switch args[0] {
			case "cm":
				return s.disp.RefreshModules(ctx, s.sm, ids)
			case "section":
				return s.disp.RefreshSections(ctx, s.sm, ids)
			case "course":
				return s.disp.RefreshCourse(ctx, s.sm)
			}
			return fmt.Errorf("неизвестный тип %q", args[0])
		},
	}
}

// visibilityCmd: с --bulk id сначала выбираются, затем скрывается весь выбор.
func (s *session) visibilityCmd(use, short string, hide bool) *cobra.Command {
	var bulk bool
	cmd := &cobra.Command{
		Use:       use + " (cm|section) ID...",
		Short:     short,
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: []string{"cm", "section"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name != "cm" && name != "section" {
				return fmt.Errorf("неизвестный тип %q", name)
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			ctx, err := s.connect(cmd)
			if err != nil {
				return err
			}

			if bulk {
				s.sm.SetBulkEnabled(true)
				if err := s.sm.SelectEntities(name, ids...); err != nil {
					return err
				}
				if hide {
					return s.disp.HideSelection(ctx, s.sm)
				}
				return s.disp.ShowSelection(ctx, s.sm)
			}

			switch {
			case name == "cm" && hide:
				return s.disp.HideModules(ctx, s.sm, ids)
			case name == "cm":
				return s.disp.ShowModules(ctx, s.sm, ids)
			case hide:
				return s.disp.HideSections(ctx, s.sm, ids)
			default:
				return s.disp.ShowSections(ctx, s.sm, ids)
			}
		},
	}
	cmd.Flags().BoolVar(&bulk, "bulk", false, "через массовый выбор")
	return cmd
}

func (s *session) tokenCmd() *cobra.Command {
	var (
		userID int
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить токен для вебсервиса (нужен JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is empty")
			}
			if userID <= 0 {
				return errors.New("нужен --user")
			}
			token, err := utils.GenerateToken(s.cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return errors.Wrap(err, "подпись токена")
			}
			fmt.Fprintln(s.out, token)
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "id пользователя")
	cmd.Flags().StringVar(&role, "role", "editingteacher", "роль")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "срок жизни")
	return cmd
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("некорректный id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
