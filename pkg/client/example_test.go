package client_test

import (
	"context"
	"fmt"

	"github.com/daniacca/surfkmc/pkg/client"
)

func ExampleMechanismBuilder() {
	mech := client.NewMechanism("isomerization").
		Species("@", "empty site", 0.8).
		Species("@A", "adsorbed A", 0.2).
		Reaction(client.NewReaction("iso").
			Reactant("@", 1).
			Product("@A", 1).
			Forward(client.Constant(2)).
			Reverse(client.Constant(1)),
		)

	cfg := mech.Build()
	fmt.Printf("Mechanism: %s\n", cfg.Name)
	fmt.Printf("Species: %d\n", len(cfg.Species))
	fmt.Printf("Reactions: %d\n", len(cfg.Reactions))
	// Output:
	// Mechanism: isomerization
	// Species: 2
	// Reactions: 1
}

func ExampleClient_CreateSimulation() {
	ctx := context.Background()
	sim := client.NewSimulation(client.NewMechanism("test").
		Species("@", "empty site", 1)).
		Lattice(10, "nn").
		Output(0, 1, 10)

	// This would send the simulation to the server
	// Uncomment to actually send:
	// c := client.New("http://localhost:8080", nil)
	// status, err := c.CreateSimulation(ctx, sim)
	// if err != nil {
	// 	log.Fatal(err)
	// }

	_ = ctx
	_ = sim
}
