package app

import (
	"fmt"
	"sync"

	accountsHTTP "github.com/allisson/fieldcrypt/internal/accounts/http"
	accountsRepository "github.com/allisson/fieldcrypt/internal/accounts/repository"
	accountsUseCase "github.com/allisson/fieldcrypt/internal/accounts/usecase"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// accountDeps holds the accounts module dependencies of the container.
type accountDeps struct {
	accountRepo    accountsUseCase.AccountRepository
	accountUseCase accountsUseCase.AccountUseCase
	migrators      []cryptoUseCase.RecordMigrator
	accountHandler *accountsHTTP.AccountHandler

	accountRepoInit    sync.Once
	accountUseCaseInit sync.Once
	migratorsInit      sync.Once
	accountHandlerInit sync.Once
}

// AccountRepository returns the account repository based on the database driver.
func (c *Container) AccountRepository() (accountsUseCase.AccountRepository, error) {
	var err error
	c.accountRepoInit.Do(func() {
		c.accountRepo, err = c.initAccountRepository()
		if err != nil {
			c.initErrors["accountRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accountRepo"]; exists {
		return nil, storedErr
	}
	return c.accountRepo, nil
}

// AccountUseCase returns the account use case, decorated with metrics.
func (c *Container) AccountUseCase() (accountsUseCase.AccountUseCase, error) {
	var err error
	c.accountUseCaseInit.Do(func() {
		c.accountUseCase, err = c.initAccountUseCase()
		if err != nil {
			c.initErrors["accountUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accountUseCase"]; exists {
		return nil, storedErr
	}
	return c.accountUseCase, nil
}

// RecordMigrators returns the migrators for every table carrying encrypted
// fields. Rotation drives these generically.
func (c *Container) RecordMigrators() ([]cryptoUseCase.RecordMigrator, error) {
	var err error
	c.migratorsInit.Do(func() {
		c.migrators, err = c.initRecordMigrators()
		if err != nil {
			c.initErrors["migrators"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["migrators"]; exists {
		return nil, storedErr
	}
	return c.migrators, nil
}

// AccountHandler returns the account HTTP handler.
func (c *Container) AccountHandler() (*accountsHTTP.AccountHandler, error) {
	var err error
	c.accountHandlerInit.Do(func() {
		c.accountHandler, err = c.initAccountHandler()
		if err != nil {
			c.initErrors["accountHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accountHandler"]; exists {
		return nil, storedErr
	}
	return c.accountHandler, nil
}

func (c *Container) initAccountRepository() (accountsUseCase.AccountRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for account repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return accountsRepository.NewMySQLAccountRepository(db), nil
	case "postgres":
		return accountsRepository.NewPostgreSQLAccountRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAccountUseCase() (accountsUseCase.AccountUseCase, error) {
	accountRepo, err := c.AccountRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get account repository for account use case: %w", err)
	}

	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for account use case: %w", err)
	}

	accessor := cryptoService.NewFieldAccessor(keyManager)
	useCase := accountsUseCase.NewAccountUseCase(accountRepo, accessor)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for account use case: %w", err)
	}

	return accountsUseCase.NewAccountUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initRecordMigrators() ([]cryptoUseCase.RecordMigrator, error) {
	accountRepo, err := c.AccountRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get account repository for record migrators: %w", err)
	}

	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for record migrators: %w", err)
	}

	return []cryptoUseCase.RecordMigrator{
		accountsUseCase.NewAccountMigrator(accountRepo, keyManager),
	}, nil
}

func (c *Container) initAccountHandler() (*accountsHTTP.AccountHandler, error) {
	accountUseCase, err := c.AccountUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get account use case for account handler: %w", err)
	}

	return accountsHTTP.NewAccountHandler(accountUseCase, c.Logger()), nil
}
