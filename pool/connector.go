package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
)

// DSNConnector returns a connector for a registered database/sql driver.
func DSNConnector(driverName, dsn string) (driver.Connector, error) {
	probe, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open driver %s: %w", driverName, err)
	}
	drv := probe.Driver()
	_ = probe.Close()

	if dc, ok := drv.(driver.DriverContext); ok {
		c, err := dc.OpenConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("open connector %s: %w", driverName, err)
		}
		return c, nil
	}

	return dsnConnector{dsn: dsn, driver: drv}, nil
}

type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver {
	return c.driver
}

type notifyingConnector struct {
	driver.Connector
	onConnect func()
}

func (c *notifyingConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c.onConnect()
	return conn, nil
}

// Close closes the wrapped connector when it holds resources of its own.
func (c *notifyingConnector) Close() error {
	if closer, ok := c.Connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
