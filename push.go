package main

import (
	"errors"
	"fmt"

	"davietech/grpc_client"

	"github.com/spf13/cobra"
)

func pushCmd() *cobra.Command {
	var (
		orderID uint32
		phone   string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send an STK push for an order through the payment gRPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == 0 {
				return errors.New("--order is required")
			}

			client, err := grpc_client.NewPaymentClient(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			p, err := client.Initiate(cmd.Context(), orderID, phone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checkout %s sent to %s for KES %s (status %s)\n",
				p.CheckoutRequestId, p.Phone, p.Amount, p.Status)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&orderID, "order", 0, "order ID to pay")
	cmd.Flags().StringVar(&phone, "phone", "", "payer phone (defaults to the order's customer phone)")
	cmd.Flags().StringVar(&addr, "addr", "localhost:50057", "payment gRPC address")
	return cmd
}
