package main

import (
	"context"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if err = checkNotFound(err); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: email}); err != nil {
			if err = checkNotFound(err); err != nil {
				return err
			}
			usr = user.User{
				Name:     uname,
				Username: uname,
				Email:    email,
				Roles:    []string{user.RoleStudent},
			}
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	active := true
	usr.IsActive = &active
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}

func checkNotFound(err error) error {
	if err == user.ErrNotFound {
		return nil
	}
	return err
}
